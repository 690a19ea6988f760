// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/go-resty/resty/v2"

	"agent-orchestrator/internal/orchestrator/tool"
)

const researchSystemPrompt = `You are a technical researcher. Summarize the findings
for the given keywords and focus areas, drawing on the fetched source material when
present. Respond with a single JSON object: {"summary": string,
"findings": [{"topic": string, "detail": string}], "recommendations": [string]}.
Respond with JSON only, no prose.`

// 单个源正文进入提示词的上限，避免长 PDF 撑爆上下文
const maxSourceChars = 8000

// Research 技术调研子工作流：抓取配置的源（含 PDF 提取），再用模型汇总。
// 注册时通过凭据可用性谓词按环境裁剪。
type Research struct {
	cm      model.BaseChatModel
	sources []string
	client  *resty.Client
}

var _ tool.SubWorkflow = (*Research)(nil)

// NewResearch 创建调研子工作流；sources 为可选的抓取源 URL 列表
func NewResearch(cm model.BaseChatModel, sources []string) *Research {
	client := resty.New()
	client.SetTimeout(20 * time.Second)
	client.SetRetryCount(2)
	return &Research{cm: cm, sources: sources, client: client}
}

// Invoke 实现 tool.SubWorkflow
func (w *Research) Invoke(ctx context.Context, args map[string]any, shared tool.SharedContext) (any, error) {
	keywords := stringSliceArg(args, "keywords")
	if len(keywords) == 0 {
		return tool.Failure("research", "keywords is required"), nil
	}
	focusAreas := stringSliceArg(args, "focus_areas")
	projectContext := stringArg(args, "project_context")

	fetched, sourceURLs := w.fetchSources(ctx)

	var b strings.Builder
	b.WriteString("Keywords: ")
	b.WriteString(strings.Join(keywords, ", "))
	if len(focusAreas) > 0 {
		b.WriteString("\nFocus areas: ")
		b.WriteString(strings.Join(focusAreas, ", "))
	}
	if projectContext != "" {
		b.WriteString("\nProject context: ")
		b.WriteString(projectContext)
	}
	for i, text := range fetched {
		b.WriteString(fmt.Sprintf("\n\n--- Source %d (%s) ---\n", i+1, sourceURLs[i]))
		b.WriteString(text)
	}

	msg, err := w.cm.Generate(ctx, []*schema.Message{
		schema.SystemMessage(researchSystemPrompt),
		schema.UserMessage(b.String()),
	})
	if err != nil {
		return nil, fmt.Errorf("research: %w", err)
	}

	out := parseJSONObject(msg.Content)
	out["sources"] = sourceURLs
	return out, nil
}

// fetchSources 抓取全部配置源，失败的源记日志后跳过，返回成功源的正文与 URL
func (w *Research) fetchSources(ctx context.Context) (texts []string, urls []string) {
	for _, url := range w.sources {
		text, err := w.fetchOne(ctx, url)
		if err != nil {
			slog.Warn("research source fetch failed", "url", url, "error", err)
			continue
		}
		if text == "" {
			continue
		}
		texts = append(texts, truncateSource(text))
		urls = append(urls, url)
	}
	return texts, urls
}

// truncateSource 截断到 maxSourceChars，回退到 rune 边界，
// 抓取的正文常含多字节字符，不能从字节中间切开。
func truncateSource(text string) string {
	if len(text) <= maxSourceChars {
		return text
	}
	cut := maxSourceChars
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

func (w *Research) fetchOne(ctx context.Context, url string) (string, error) {
	resp, err := w.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", fmt.Errorf("status %d", resp.StatusCode())
	}

	body := resp.Body()
	contentType := resp.Header().Get("Content-Type")
	if strings.Contains(contentType, "application/pdf") || strings.HasSuffix(strings.ToLower(url), ".pdf") {
		text, err := extractPDFText(body)
		if err != nil {
			return "", fmt.Errorf("pdf extract: %w", err)
		}
		return text, nil
	}
	return strings.TrimSpace(string(body)), nil
}
