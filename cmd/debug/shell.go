package debug

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/pterm/pterm"
	log "github.com/sirupsen/logrus"
)

// Shell is an interactive terminal front end for the debug API
type Shell struct {
	debugClient *DebugClient
	input       *bufio.Scanner
	commands    map[string]Command
	history     []string
	dryRun      bool
	running     bool
}

// Command represents a debug command
type Command struct {
	Handler     CommandHandler
	Description string
	Usage       string
	Category    string // "read", "admin", "utility"
}

// CommandHandler is a function that handles a debug command
type CommandHandler func(s *Shell, args []string) error

// NewShell creates a shell reading commands from in
func NewShell(client *DebugClient, in io.Reader) *Shell {
	s := &Shell{
		debugClient: client,
		input:       bufio.NewScanner(in),
		history:     []string{},
		running:     true,
	}
	s.initializeCommands()
	return s
}

// Connect prints the banner and checks the debug API is reachable
func (s *Shell) Connect() error {
	pterm.DefaultHeader.WithFullWidth().Println("Cardroom Debug Shell")

	spinner, _ := pterm.DefaultSpinner.Start("Connecting to debug API...")
	if err := s.debugClient.CheckConnection(); err != nil {
		if spinner != nil {
			spinner.Fail("Failed to connect to debug API")
		}
		return fmt.Errorf("%w\n\nPlease check that cardroom is running and DEBUG_API_PORT matches", err)
	}
	if spinner != nil {
		spinner.Success("Connected to debug API")
	}

	pterm.Info.Println("Type 'help' for available commands")
	return nil
}

// Run reads and executes commands until exit, EOF or ctx cancellation
func (s *Shell) Run(ctx context.Context) error {
	for s.running {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		fmt.Print("\ncardroom> ")
		if !s.input.Scan() {
			break
		}

		input := strings.TrimSpace(s.input.Text())
		if input == "" {
			continue
		}
		s.history = append(s.history, input)

		if err := s.Execute(input); err != nil {
			s.printError(err)
		}
	}

	if err := s.input.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}
	return nil
}

// Execute runs a single command line
func (s *Shell) Execute(line string) error {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return nil
	}
	cmdName, args := parts[0], parts[1:]

	switch cmdName {
	case "exit", "quit":
		s.running = false
		pterm.Info.Println("Exiting debug shell. Cardroom will continue running.")
		return nil
	case "clear":
		fmt.Print("\033[H\033[2J")
		return nil
	case "dry-run":
		return s.handleDryRun(args)
	}

	cmd, exists := s.commands[cmdName]
	if !exists {
		return fmt.Errorf("unknown command: %s. Type 'help' for available commands", cmdName)
	}
	return cmd.Handler(s, args)
}

func (s *Shell) printError(err error) {
	pterm.Error.Println(err.Error())
}

// confirmAction prompts for confirmation on the shell's own input
func (s *Shell) confirmAction(prompt string) bool {
	if s.dryRun {
		pterm.Info.Println("Dry-run mode: would execute action")
		return false
	}

	pterm.Warning.Printf("%s [y/N]: ", prompt)
	if !s.input.Scan() {
		return false
	}

	response := strings.ToLower(strings.TrimSpace(s.input.Text()))
	return response == "y" || response == "yes"
}

func (s *Shell) handleDryRun(args []string) error {
	if len(args) == 0 {
		status := "off"
		if s.dryRun {
			status = "on"
		}
		pterm.Info.Printfln("Dry-run mode is currently: %s", status)
		return nil
	}

	switch strings.ToLower(args[0]) {
	case "on", "true", "1":
		s.dryRun = true
		pterm.Warning.Println("Dry-run mode enabled - no jobs will be triggered")
	case "off", "false", "0":
		s.dryRun = false
		pterm.Success.Println("Dry-run mode disabled")
	default:
		return fmt.Errorf("invalid dry-run value. Use 'on' or 'off'")
	}
	return nil
}

// logAdminAction logs actions that change state for audit purposes
func (s *Shell) logAdminAction(action string, details log.Fields) {
	fields := log.Fields{
		"action":    action,
		"timestamp": time.Now().Unix(),
		"source":    "debug_shell",
	}
	for k, v := range details {
		fields[k] = v
	}
	log.WithFields(fields).Info("Admin action executed via debug shell")
}

func (s *Shell) sortedCommandNames() []string {
	names := make([]string, 0, len(s.commands))
	for name := range s.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
