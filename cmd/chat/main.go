package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/petasbytes/chatloop/internal/app"
)

func isExit(line string) bool {
	switch strings.ToLower(line) {
	case "exit", "quit", "종료":
		return true
	}
	return false
}

func main() {
	env, err := app.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	r := env.NewRunner()

	// Ctrl-C / SIGTERM cancels the in-flight turn and ends the session.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigch)
	go func() {
		<-sigch
		fmt.Println("\nExiting...")
		cancel()
	}()

	scanner := bufio.NewScanner(os.Stdin)
	fmt.Printf("Chat (%s). Type exit, quit or 종료 to leave, /reset to start over.\n", env.Describe())

	inputCh := make(chan string)
	go func() {
		for scanner.Scan() {
			inputCh <- scanner.Text()
		}
		close(inputCh)
	}()

outer:
	for {
		fmt.Print("\u001b[94mYou\u001b[0m: ")
		var (
			line string
			ok   bool
		)
		select {
		case <-ctx.Done():
			break outer
		case line, ok = <-inputCh:
			if !ok {
				break outer
			}
		}
		line = strings.TrimSpace(line)
		switch {
		case line == "":
			continue
		case isExit(line):
			break outer
		case line == "/reset":
			r.Reset()
			fmt.Println("(history cleared)")
			continue
		}

		fmt.Print("\u001b[93mAssistant\u001b[0m: ")
		_, err := r.AskStream(ctx, line, func(s string) { fmt.Print(s) })
		fmt.Println()
		if err != nil {
			if errors.Is(err, context.Canceled) {
				break outer
			}
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: stdin read error: %v\n", err)
	}
}
