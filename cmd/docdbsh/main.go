package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/kartikbazzad/queryterm/cmd/docdbsh/parser"
	"github.com/kartikbazzad/queryterm/cmd/docdbsh/shell"
	"github.com/peterh/liner"
)

const prompt = "queryterm> "

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".queryterm_history")
}

func main() {
	socketPath := flag.String("socket", "/tmp/queryterm.sock", "unix socket path")
	flag.Parse()

	fmt.Println("queryterm shell")
	fmt.Printf("connecting to %s...\n", *socketPath)

	sh, err := shell.NewShell(*socketPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize shell: %v\n", err)
		os.Exit(1)
	}
	defer sh.Close()

	if err := sh.Connect(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("connected. type '.help' for commands.")

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	histPath := historyPath()
	if histPath != "" {
		if f, err := os.Open(histPath); err == nil {
			line.ReadHistory(f)
			f.Close()
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\ninterrupted, exiting...")
		sh.Close()
		os.Exit(0)
	}()

	for {
		input, err := line.Prompt(prompt)
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				break
			}
			fmt.Fprintf(os.Stderr, "error reading input: %v\n", err)
			continue
		}

		if input == "" {
			continue
		}
		line.AppendHistory(input)

		cmd, err := parser.Parse(input)
		if err != nil {
			fmt.Println("ERROR")
			fmt.Println(err.Error())
			fmt.Println()
			continue
		}

		result := sh.Execute(cmd)
		if result.IsExit() {
			break
		}
		result.Print(os.Stdout)
		fmt.Println()
	}

	if histPath != "" {
		if f, err := os.Create(histPath); err == nil {
			line.WriteHistory(f)
			f.Close()
		}
	}
}
