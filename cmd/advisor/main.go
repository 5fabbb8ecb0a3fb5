package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"

	advisor "github.com/kidsfood/advisor"
)

const defaultEnginePort = 8082

func main() {
	serveCmd := flag.NewFlagSet("serve", flag.ExitOnError)
	servePort := serveCmd.Int("port", defaultEnginePort, "Port to run the local engine on")

	chatCmd := flag.NewFlagSet("chat", flag.ExitOnError)
	chatSession := chatCmd.String("session", "", "Existing session ID to resume")
	chatDB := chatCmd.String("db", "", "SQLite file for local state (optional)")

	if len(os.Args) < 2 {
		fmt.Println("Expected 'serve' or 'chat' subcommand")
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		serveCmd.Parse(os.Args[2:])
		runServe(*servePort)
	case "chat":
		chatCmd.Parse(os.Args[2:])
		runChat(*chatSession, *chatDB)
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		fmt.Println("Expected 'serve' or 'chat' subcommand")
		os.Exit(1)
	}
}

// runServe starts the local development engine: chat stream, session store
// and image analysis on one port.
func runServe(port int) {
	cfg := advisor.LoadConfig()
	if cfg.OpenAIAPIKey == "" {
		fmt.Println("Error: OPENAI_API_KEY is required for the local engine")
		os.Exit(1)
	}

	llm := advisor.NewLLM(cfg.OpenAIAPIKey, cfg.OpenAIBase, cfg.Model)
	engine := advisor.NewLocalEngine(llm)

	log.Printf("Starting local engine on port %d...", port)
	if err := http.ListenAndServe(fmt.Sprintf(":%d", port), engine.Handler()); err != nil {
		log.Fatalf("Failed to start local engine: %v", err)
	}
}

// runChat runs an interactive consultation against the configured services.
func runChat(sessionID, dbPath string) {
	cfg := advisor.LoadConfig()
	client := advisor.NewClient(cfg)

	var storage advisor.Storage
	if dbPath != "" {
		var err error
		storage, err = advisor.NewSQLiteStorage(dbPath)
		if err != nil {
			log.Fatalf("Failed to open local storage: %v", err)
		}
		defer storage.Close()
	}

	app := advisor.NewAdvisor(client, storage)
	defer app.Reset()

	ctx := context.Background()
	var sess *advisor.ChatSession
	var err error
	if sessionID != "" {
		sess, err = app.OpenChatSession(ctx, sessionID)
	} else {
		sess, err = app.NewChatSession(ctx)
	}
	if err != nil {
		log.Fatalf("Failed to open session: %v", err)
	}
	fmt.Printf("Session %s ready. Type a message, Ctrl-D to quit.\n", sess.ID())

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		result := advisor.ValidateInput(scanner.Text(), advisor.ChatMessageRules)
		if !result.IsValid {
			for _, msg := range result.Errors {
				fmt.Println(msg)
			}
			continue
		}

		if err := sess.SendMessage(ctx, result.SanitizedValue); err != nil {
			fmt.Printf("Send failed: %v\n", err)
			continue
		}

		transcript := sess.Transcript()
		if turn := transcript.LastTurn(); turn != nil {
			fmt.Println()
			fmt.Println(turn.Content)
			fmt.Println()
		}
	}
}
