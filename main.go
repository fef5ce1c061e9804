package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/awnumar/memguard"

	"github.com/illarion/coachvault/cmd"
)

func main() {
	// Wipe protected key memory on Ctrl-C and on normal return
	memguard.CatchInterrupt()
	defer memguard.Purge()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	global := flag.NewFlagSet("coachvault", flag.ExitOnError)
	global.Usage = printUsage
	configPath := global.String("config", "", "Path to config.toml")
	verbose := global.Bool("v", false, "Enable debug logging")
	if err := global.Parse(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	args := global.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	command, rest := args[0], args[1:]
	switch command {
	case "help", "-h", "--help":
		if len(rest) == 0 {
			printUsage()
			return
		}
		printCommandHelp(rest[0])
		return
	case "completion":
		runCompletion(rest)
		return
	}

	cmd.Setup(*configPath, *verbose)

	switch command {
	case "init":
		runInit(ctx, rest)
	case "put":
		runPut(ctx, rest)
	case "get":
		runGet(ctx, rest)
	case "rm":
		runRm(ctx, rest)
	case "ls":
		runLs(ctx, rest)
	case "export":
		runExport(ctx, rest)
	case "diff":
		runDiff(ctx, rest)
	case "status":
		runStatus(ctx, rest)
	case "compact":
		runCompact(ctx, rest)
	case "keyring":
		runKeyring(ctx, rest)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// parseFlags parses a command's flags and checks the positional count
func parseFlags(fs *flag.FlagSet, args []string, min, max int, usage string) []string {
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	if fs.NArg() < min || (max >= 0 && fs.NArg() > max) {
		fmt.Fprintf(os.Stderr, "Usage: %s\n", usage)
		os.Exit(1)
	}
	return fs.Args()
}

func runInit(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	parseFlags(fs, args, 0, 0, "coachvault init")
	cmd.Init(ctx)
}

func runPut(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("put", flag.ExitOnError)
	a := parseFlags(fs, args, 3, 3, "coachvault put <collection> <id> <json|->")
	cmd.Put(ctx, a[0], a[1], a[2])
}

func runGet(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("get", flag.ExitOnError)
	a := parseFlags(fs, args, 2, 2, "coachvault get <collection> <id>")
	cmd.Get(ctx, a[0], a[1])
}

func runRm(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("rm", flag.ExitOnError)
	a := parseFlags(fs, args, 2, 2, "coachvault rm <collection> <id>")
	cmd.Remove(ctx, a[0], a[1])
}

func runLs(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("ls", flag.ExitOnError)
	a := parseFlags(fs, args, 0, 1, "coachvault ls [collection]")
	collection := ""
	if len(a) == 1 {
		collection = a[0]
	}
	cmd.Ls(ctx, collection)
}

func runExport(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	out := fs.String("out", "", "Write the export to this file instead of stdout")
	parseFlags(fs, args, 0, 0, "coachvault export [--out FILE]")
	cmd.Export(ctx, *out)
}

func runDiff(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("diff", flag.ExitOnError)
	a := parseFlags(fs, args, 1, 1, "coachvault diff <export.json>")
	cmd.Diff(ctx, a[0])
}

func runStatus(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	parseFlags(fs, args, 0, 0, "coachvault status")
	cmd.Status(ctx)
}

func runCompact(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("compact", flag.ExitOnError)
	parseFlags(fs, args, 0, 0, "coachvault compact")
	cmd.Compact(ctx)
}

func runKeyring(ctx context.Context, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "Usage: coachvault keyring <save|delete|status>")
		os.Exit(1)
	}
	switch args[0] {
	case "save":
		cmd.KeyringSave(ctx)
	case "delete":
		cmd.KeyringDelete(ctx)
	case "status":
		cmd.KeyringStatus(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown keyring command: %s\n", args[0])
		os.Exit(1)
	}
}

func runCompletion(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: coachvault completion <bash|zsh|fish>")
		os.Exit(1)
	}
	cmd.Completion(args[0])
}

func printUsage() {
	fmt.Println("coachvault - Private, encrypted local storage for coaching data")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  coachvault [--config FILE] [-v] <command> [arguments]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  init        Create a vault in the data directory")
	fmt.Println("  put         Encrypt and store a JSON value")
	fmt.Println("  get         Decrypt and print a record")
	fmt.Println("  rm          Remove a record")
	fmt.Println("  ls          List record keys")
	fmt.Println("  export      Decrypt every record into one JSON document")
	fmt.Println("  diff        Compare an earlier export with the vault")
	fmt.Println("  status      Show vault status")
	fmt.Println("  compact     Compact records.db to reclaim disk space")
	fmt.Println("  keyring     Manage passphrase in OS keyring")
	fmt.Println("  completion  Generate shell completions")
	fmt.Println("  help        Show help for a command")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  coachvault init")
	fmt.Println("  coachvault put notes n1 '{\"text\":\"hello\"}'")
	fmt.Println("  coachvault get notes n1")
	fmt.Println("  coachvault export --out backup.json")
	fmt.Println()
	fmt.Println("Use 'coachvault help <command>' for more information about a command.")
}

func printCommandHelp(command string) {
	switch command {
	case "init":
		fmt.Println("coachvault init")
		fmt.Println()
		fmt.Println("Creates the data directory with keys.db, a random salt, a device key")
		fmt.Println("and config.toml. Prompts for the passphrase twice unless")
		fmt.Println("COACHVAULT_PASSPHRASE is set.")
		fmt.Println("The passphrase is not stored anywhere - you must remember it.")
	case "put":
		fmt.Println("coachvault put <collection> <id> <json|->")
		fmt.Println()
		fmt.Println("Encrypts a JSON value and stores it under collection:id, replacing any")
		fmt.Println("previous value. Use '-' to read the value from stdin.")
		fmt.Println("Collections cannot contain ':'; ids can.")
		fmt.Println()
		fmt.Println("Examples:")
		fmt.Println("  coachvault put user_profile current '{\"name\":\"Ada\"}'")
		fmt.Println("  cat workout.json | coachvault put workouts 2024-01-15 -")
	case "get":
		fmt.Println("coachvault get <collection> <id>")
		fmt.Println()
		fmt.Println("Decrypts and prints one record. A record written under a different")
		fmt.Println("passphrase is reported as not readable.")
	case "rm":
		fmt.Println("coachvault rm <collection> <id>")
		fmt.Println()
		fmt.Println("Removes a record and compacts records.db.")
	case "ls":
		fmt.Println("coachvault ls [collection]")
		fmt.Println()
		fmt.Println("Lists record keys and ciphertext sizes. Does not require a passphrase.")
	case "export":
		fmt.Println("coachvault export [--out FILE]")
		fmt.Println()
		fmt.Println("Decrypts every record into a JSON object keyed by collection:id.")
		fmt.Println("Records that cannot be decrypted appear as {\"error\": \"Decryption Failed\"}.")
		fmt.Println("--out must be a path inside the current directory; the file is created 0600.")
	case "diff":
		fmt.Println("coachvault diff <export.json>")
		fmt.Println()
		fmt.Println("Shows records added, removed and changed since an earlier export,")
		fmt.Println("followed by a line diff.")
	case "status":
		fmt.Println("coachvault status")
		fmt.Println()
		fmt.Println("Shows record count, timestamps, encryption details, keyring state")
		fmt.Println("and git hygiene checks. Does not require a passphrase.")
	case "compact":
		fmt.Println("coachvault compact")
		fmt.Println()
		fmt.Println("Compacts records.db to reclaim unused disk space.")
		fmt.Println("This is done automatically after 'rm'.")
	case "keyring":
		fmt.Println("coachvault keyring <save|delete|status>")
		fmt.Println()
		fmt.Println("Stores the passphrase in the OS keyring so later commands do not prompt.")
		fmt.Println("'save' asks for the passphrase twice. It cannot tell whether this is the")
		fmt.Println("passphrase the vault was written with; records saved under a different")
		fmt.Println("one will not be readable with the original.")
	case "completion":
		fmt.Println("coachvault completion <bash|zsh|fish>")
		fmt.Println()
		fmt.Println("Setup:")
		fmt.Println("  # Bash - add to ~/.bashrc")
		fmt.Println("  eval \"$(coachvault completion bash)\"")
		fmt.Println()
		fmt.Println("  # Zsh - add to ~/.zshrc")
		fmt.Println("  eval \"$(coachvault completion zsh)\"")
		fmt.Println()
		fmt.Println("  # Fish - add to ~/.config/fish/config.fish")
		fmt.Println("  coachvault completion fish | source")
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
	}
}
