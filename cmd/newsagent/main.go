package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/petasbytes/chatloop/conversation"
	"github.com/petasbytes/chatloop/internal/app"
	"github.com/petasbytes/chatloop/internal/runner"
)

const defaultQuery = "오늘 AI 관련 뉴스를 알려줘"

func query(args []string) string {
	if q := strings.TrimSpace(strings.Join(args, " ")); q != "" {
		return q
	}
	return defaultQuery
}

func main() {
	env, err := app.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if !env.Config.NewsSearchEnabled() {
		fmt.Fprintln(os.Stderr, "warning: NAVER_CLIENT_ID/NAVER_CLIENT_SECRET not set; search_news is unavailable")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := env.NewRunner(
		runner.WithStreaming(false),
		runner.WithOnToolCall(func(c conversation.ToolCall) {
			fmt.Printf("[tool call] %s %s\n", c.Name, c.Arguments)
		}),
		runner.WithOnToolResult(func(c conversation.ToolCall, content string, err error) {
			if err != nil {
				fmt.Fprintf(os.Stderr, "[tool error] %s: %v\n", c.Name, err)
			}
		}),
	)

	q := query(os.Args[1:])
	fmt.Printf("Q: %s\n", q)
	answer, err := r.Ask(ctx, q)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("A: %s\n", answer)
}
