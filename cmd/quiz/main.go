package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"docquiz/internal/config"
	"docquiz/internal/domain"
	"docquiz/internal/quiz"
	"docquiz/internal/services"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <file.pdf> [file.pdf ...]\n", filepath.Base(os.Args[0]))
		os.Exit(2)
	}

	client, err := services.NewOpenAIClient(cfg)
	if err != nil {
		log.Fatalf("provider client: %v", err)
	}

	llmLog, err := services.NewLLMLogger(cfg.DataDir, cfg.DebugLog)
	if err != nil {
		log.Fatalf("provider log: %v", err)
	}
	defer llmLog.Close()

	uploadSvc := services.NewUploadService(cfg, client)
	generateSvc := services.NewGenerateService(cfg, client, llmLog)

	session := quiz.NewSession(uploadSvc, generateSvc)
	stdin := bufio.NewScanner(os.Stdin)
	ctx := context.Background()

	if err := stagePaths(session, os.Args[1:]); err != nil {
		log.Fatalf("%v", err)
	}

	fmt.Println("Uploading documents and generating questions...")
	if err := session.Start(ctx); err != nil {
		log.Fatalf("start quiz: %v", err)
	}

	for {
		playQuestions(session, stdin)

		score, total := session.Score()
		percent := quiz.Percent(score, total)
		fmt.Printf("\nFinished! You scored %d/%d (%d%%).\n%s\n", score, total, percent, quiz.BandMessage(percent))

		switch promptChoice(stdin) {
		case "m":
			fmt.Println("Generating more questions...")
			if err := session.MoreQuestions(ctx); err != nil {
				fmt.Printf("could not extend the quiz: %s\n", session.LastError())
			}
		case "r":
			fmt.Println("Regenerating the quiz from your documents...")
			if err := session.Restart(ctx); err != nil {
				fmt.Printf("could not restart the quiz: %s\n", session.LastError())
			}
		case "n":
			session.Reset()
			fmt.Print("Enter PDF paths separated by spaces: ")
			if !stdin.Scan() {
				return
			}
			paths := strings.Fields(stdin.Text())
			if err := stagePaths(session, paths); err != nil {
				fmt.Printf("%v\n", err)
				continue
			}
			fmt.Println("Uploading documents and generating questions...")
			if err := session.Start(ctx); err != nil {
				fmt.Printf("could not start the quiz: %s\n", session.LastError())
			}
		default:
			return
		}

		if session.Phase() != quiz.PhaseAnswering {
			return
		}
	}
}

func stagePaths(session *quiz.Session, paths []string) error {
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("stat %s: %w", path, err)
		}
		if err := session.StageFiles(domain.StagedFile{
			Name: filepath.Base(path),
			Size: info.Size(),
			Path: path,
		}); err != nil {
			return err
		}
	}
	return nil
}

func playQuestions(session *quiz.Session, stdin *bufio.Scanner) {
	for session.Phase() == quiz.PhaseAnswering {
		view, err := session.CurrentView()
		if err != nil {
			return
		}

		fmt.Printf("\nQuestion %d of %d\n%s\n", view.Index+1, view.Total, view.Question)
		for i, opt := range view.Options {
			fmt.Printf("  %d) %s\n", i+1, opt)
		}

		choice := readChoice(stdin, len(view.Options))
		if choice < 0 {
			return
		}
		if err := session.SelectOption(choice); err != nil {
			fmt.Printf("%v\n", err)
			continue
		}

		answered, _ := session.CurrentView()
		if answered.Correct {
			fmt.Println("Correct!")
		} else {
			fmt.Printf("Wrong. The correct answer was %d) %s\n", answered.Answer+1, answered.Options[answered.Answer])
		}

		if err := session.Advance(); err != nil {
			fmt.Printf("%v\n", err)
			return
		}
	}
}

func readChoice(stdin *bufio.Scanner, optionCount int) int {
	for {
		fmt.Print("Your answer: ")
		if !stdin.Scan() {
			return -1
		}
		n, err := strconv.Atoi(strings.TrimSpace(stdin.Text()))
		if err != nil || n < 1 || n > optionCount {
			fmt.Printf("enter a number between 1 and %d\n", optionCount)
			continue
		}
		return n - 1
	}
}

func promptChoice(stdin *bufio.Scanner) string {
	fmt.Print("\n[m]ore questions, [r]estart, [n]ew files, [q]uit: ")
	if !stdin.Scan() {
		return "q"
	}
	return strings.ToLower(strings.TrimSpace(stdin.Text()))
}
