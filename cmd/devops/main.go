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

// devops 启动 Eino Dev 调试服务并注册子工作流 Graph，供 IDE 插件（Eino Dev）连接后进行可视化调试。
// 使用：go run ./cmd/devops；在 IDE 中配置连接地址 127.0.0.1:52538 后选择编排进行 Test Run。
// 需要 configs/model.yaml 配置默认 LLM，否则只注册不依赖模型的示例图。
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino-ext/devops"
	"github.com/cloudwego/eino/compose"

	"agent-orchestrator/internal/workflow"
	"agent-orchestrator/pkg/config"
)

// DevInput 示例图输入
type DevInput struct {
	Query string `json:"query"`
}

// DevOutput 示例图输出
type DevOutput struct {
	Result string `json:"result"`
}

// registerEchoGraph 注册一个不依赖模型的极简图，保证插件始终有 artifact 可选
func registerEchoGraph(ctx context.Context) error {
	g := compose.NewGraph[*DevInput, *DevOutput]()

	g.AddLambdaNode("echo", compose.InvokableLambda(func(ctx context.Context, input *DevInput) (*DevOutput, error) {
		if input == nil {
			return &DevOutput{Result: ""}, nil
		}
		return &DevOutput{Result: "echo: " + input.Query}, nil
	}))

	g.AddEdge(compose.START, "echo")
	g.AddEdge("echo", compose.END)

	_, err := g.Compile(ctx)
	if err != nil {
		return fmt.Errorf("compile echo graph: %w", err)
	}
	return nil
}

// registerWorkflowGraphs 编译真实子工作流图（requirements_analysis / short_planning / design），
// 构造函数内部 Compile 时会向调试服务注册 artifact
func registerWorkflowGraphs(ctx context.Context) error {
	cfg, err := config.LoadModelConfig()
	if err != nil {
		return fmt.Errorf("load model config: %w", err)
	}
	cm, err := workflow.NewChatModel(ctx, cfg)
	if err != nil {
		return fmt.Errorf("create chat model: %w", err)
	}
	if _, err := workflow.NewRequirementsAnalysis(ctx, cm); err != nil {
		return fmt.Errorf("compile requirements_analysis: %w", err)
	}
	if _, err := workflow.NewShortPlanning(ctx, cm); err != nil {
		return fmt.Errorf("compile short_planning: %w", err)
	}
	if _, err := workflow.NewDesign(ctx, cm); err != nil {
		return fmt.Errorf("compile design: %w", err)
	}
	return nil
}

func main() {
	ctx := context.Background()

	// 1. 先初始化 Eino Dev 调试服务（必须在任何 Compile 之前调用）
	if err := devops.Init(ctx); err != nil {
		log.Fatalf("[eino dev] init failed: %v", err)
	}

	// 2. 编译图，插件会通过已编译的 artifact 列表展示
	if err := registerEchoGraph(ctx); err != nil {
		log.Fatalf("[eino dev] register echo graph: %v", err)
	}
	if err := registerWorkflowGraphs(ctx); err != nil {
		log.Printf("[eino dev] 子工作流图未注册（缺少模型配置时可忽略）: %v", err)
	}

	log.Println("[eino dev] server listening on 127.0.0.1:52538; open Eino Dev in IDE and configure this address to debug")
	log.Println("[eino dev] press Ctrl+C to exit")

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs

	log.Println("[eino dev] shutting down")
}
