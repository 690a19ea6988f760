package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"agent-orchestrator/internal/orchestrator/stream"
	"agent-orchestrator/pkg/config"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}
	cmd := os.Args[1]
	args := os.Args[2:]
	switch cmd {
	case "version":
		fmt.Println("agent-orchestrator cli 0.1.0")
	case "health":
		runHealth()
	case "config":
		runConfig()
	case "server":
		if len(args) > 0 && args[0] == "start" {
			runServerStart()
		} else {
			fmt.Fprintf(os.Stderr, "Usage: agentctl server start\n")
			os.Exit(1)
		}
	case "session":
		runSession(args)
	case "chat":
		runChat(args)
	case "tools":
		runTools()
	case "status":
		runStatus()
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: agentctl <command> [args]")
	fmt.Println("  version              - 显示版本")
	fmt.Println("  health               - API 健康检查")
	fmt.Println("  config               - 显示配置概要")
	fmt.Println("  server start         - 启动 API 服务（go run ./cmd/api）")
	fmt.Println("  session new          - 创建会话，返回 session_id")
	fmt.Println("  session list         - 列出全部会话")
	fmt.Println("  session show <id>    - 显示会话摘要与 project_state")
	fmt.Println("  session history <id> - 显示会话消息与工具调用历史")
	fmt.Println("  session delete <id>  - 删除会话")
	fmt.Println("  chat [session_id]    - 交互式对话（未传 id 时新建会话）")
	fmt.Println("  tools                - 列出已注册工具")
	fmt.Println("  status               - 显示系统状态")
}

func runHealth() {
	out, err := checkHealth()
	if err != nil {
		fmt.Fprintf(os.Stderr, "健康检查失败: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(prettyJSON(out))
}

func runConfig() {
	cfg, err := config.LoadAPIConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	if cfg != nil {
		fmt.Printf("api.port=%d\n", cfg.API.Port)
		fmt.Printf("api.host=%s\n", cfg.API.Host)
		fmt.Printf("session_store.type=%s\n", cfg.SessionStore.Type)
		fmt.Printf("model.defaults.llm=%s\n", cfg.Model.Defaults.LLM)
	}
}

func runServerStart() {
	c := exec.Command("go", "run", "./cmd/api")
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	c.Dir = "."
	if err := c.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "server start: %v\n", err)
		os.Exit(1)
	}
}

func runSession(args []string) {
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "Usage: agentctl session <new|list|show|history|delete> [id]\n")
		os.Exit(1)
	}
	switch args[0] {
	case "new":
		id, err := createSession()
		if err != nil {
			fmt.Fprintf(os.Stderr, "创建会话失败: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(id)
	case "list":
		sessions, err := listSessions()
		if err != nil {
			fmt.Fprintf(os.Stderr, "列出会话失败: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(prettyJSON(sessions))
	case "show":
		if len(args) < 2 {
			fmt.Fprintf(os.Stderr, "Usage: agentctl session show <id>\n")
			os.Exit(1)
		}
		out, err := getSession(args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "获取会话失败: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(prettyJSON(out))
	case "history":
		if len(args) < 2 {
			fmt.Fprintf(os.Stderr, "Usage: agentctl session history <id>\n")
			os.Exit(1)
		}
		out, err := getHistory(args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "获取历史失败: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(prettyJSON(out))
	case "delete":
		if len(args) < 2 {
			fmt.Fprintf(os.Stderr, "Usage: agentctl session delete <id>\n")
			os.Exit(1)
		}
		if err := deleteSession(args[1]); err != nil {
			fmt.Fprintf(os.Stderr, "删除会话失败: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("deleted")
	default:
		fmt.Fprintf(os.Stderr, "未知子命令: %s\n", args[0])
		os.Exit(1)
	}
}

func runChat(args []string) {
	sessionID := ""
	if len(args) > 0 {
		sessionID = args[0]
	}
	if sessionID == "" {
		id, err := createSession()
		if err != nil {
			fmt.Fprintf(os.Stderr, "创建会话失败: %v\n", err)
			os.Exit(1)
		}
		sessionID = id
		fmt.Printf("会话: %s\n", sessionID)
	}

	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			break
		}
		msg := strings.TrimSpace(line)
		if msg == "" {
			continue
		}
		if msg == "exit" || msg == "quit" {
			break
		}
		route, err := streamMessage(sessionID, msg, func(fragment string) {
			renderFragment(os.Stdout, fragment)
		})
		fmt.Println()
		if err != nil {
			fmt.Fprintf(os.Stderr, "发送失败: %v\n", err)
			continue
		}
		if route == "error" {
			fmt.Fprintln(os.Stderr, "[本轮出现错误，可重试]")
		}
	}
}

// renderFragment 渲染流式片段：控制标记转为工具状态提示行，
// 普通文本原样输出，未知标记按文本处理。
func renderFragment(w io.Writer, fragment string) {
	ev, ok := stream.ParseControlToken(fragment)
	if !ok {
		fmt.Fprint(w, fragment)
		return
	}
	switch ev.Kind {
	case stream.EventToolStart:
		fmt.Fprintf(w, "\n[工具 %s 执行中...]\n", ev.Tool)
	case stream.EventToolEnd:
		status := "完成"
		if !ev.Success {
			status = "失败"
		}
		fmt.Fprintf(w, "[工具 %s %s，耗时 %.2fs]\n", ev.Tool, status, ev.Elapsed)
	case stream.EventNewReply:
		fmt.Fprintln(w)
	}
}

func runTools() {
	tools, err := listTools()
	if err != nil {
		fmt.Fprintf(os.Stderr, "列出工具失败: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(prettyJSON(tools))
}

func runStatus() {
	out, err := systemStatus()
	if err != nil {
		fmt.Fprintf(os.Stderr, "获取状态失败: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(prettyJSON(out))
}
