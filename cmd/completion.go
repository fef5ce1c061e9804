package cmd

import (
	"fmt"
	"os"
)

// Completion outputs shell completion scripts
func Completion(shell string) {
	switch shell {
	case "bash":
		fmt.Print(bashCompletion)
	case "zsh":
		fmt.Print(zshCompletion)
	case "fish":
		fmt.Print(fishCompletion)
	default:
		fmt.Fprintf(os.Stderr, "Unknown shell: %s\nSupported: bash, zsh, fish\n", shell)
		os.Exit(1)
	}
}

const bashCompletion = `_coachvault() {
    local cur prev words cword
    _init_completion || return

    local commands="init put get rm ls export diff status compact keyring help completion"

    if [[ $cword -eq 1 ]]; then
        COMPREPLY=($(compgen -W "$commands" -- "$cur"))
        return
    fi

    local cmd="${words[1]}"
    case "$cmd" in
        get|rm|ls|put)
            if [[ $cword -eq 2 ]]; then
                # Complete with collections from the vault
                local collections
                collections=$(coachvault ls 2>/dev/null | sed -n 's/^  \([^:]*\):.*/\1/p' | sort -u)
                COMPREPLY=($(compgen -W "$collections" -- "$cur"))
            elif [[ $cword -eq 3 && "$cmd" != "ls" ]]; then
                local ids
                ids=$(coachvault ls "${words[2]}" 2>/dev/null | sed -n 's/^  [^:]*:\(.*\) (.*/\1/p')
                COMPREPLY=($(compgen -W "$ids" -- "$cur"))
            fi
            ;;
        export)
            if [[ "$cur" == -* ]]; then
                COMPREPLY=($(compgen -W "--out" -- "$cur"))
            elif [[ "$prev" == "--out" ]]; then
                _filedir json
            fi
            ;;
        diff)
            _filedir json
            ;;
        keyring)
            COMPREPLY=($(compgen -W "save delete status" -- "$cur"))
            ;;
        help)
            COMPREPLY=($(compgen -W "$commands" -- "$cur"))
            ;;
        completion)
            COMPREPLY=($(compgen -W "bash zsh fish" -- "$cur"))
            ;;
    esac
}

complete -F _coachvault coachvault
`

const zshCompletion = `#compdef coachvault

_coachvault() {
    local -a commands
    commands=(
        'init:Create a vault in the data directory'
        'put:Encrypt and store a JSON value'
        'get:Decrypt and print a record'
        'rm:Remove a record'
        'ls:List record keys'
        'export:Decrypt all records into one JSON document'
        'diff:Compare an earlier export with the vault'
        'status:Show vault status'
        'compact:Compact records.db to reclaim disk space'
        'keyring:Manage passphrase in OS keyring'
        'help:Show help for a command'
        'completion:Generate shell completions'
    )

    _arguments -C \
        '1: :->command' \
        '*: :->args'

    case "$state" in
        command)
            _describe -t commands 'coachvault commands' commands
            ;;
        args)
            case "${words[2]}" in
                get|rm|put|ls)
                    _arguments '2:collection:_coachvault_collections'
                    ;;
                export)
                    _arguments '--out[Write export to file]:file:_files -g "*.json"'
                    ;;
                diff)
                    _arguments '*:export file:_files -g "*.json"'
                    ;;
                keyring)
                    _values 'subcommand' save delete status
                    ;;
                help)
                    _describe -t commands 'coachvault commands' commands
                    ;;
                completion)
                    _values 'shell' bash zsh fish
                    ;;
            esac
            ;;
    esac
}

_coachvault_collections() {
    local -a collections
    collections=(${(f)"$(coachvault ls 2>/dev/null | sed -n 's/^  \([^:]*\):.*/\1/p' | sort -u)"})
    _describe -t collections 'collections' collections
}

_coachvault "$@"
`

const fishCompletion = `# coachvault fish completions

set -l commands init put get rm ls export diff status compact keyring help completion

complete -c coachvault -f

# Commands
complete -c coachvault -n "not __fish_seen_subcommand_from $commands" -a init -d 'Create a vault'
complete -c coachvault -n "not __fish_seen_subcommand_from $commands" -a put -d 'Store a JSON value'
complete -c coachvault -n "not __fish_seen_subcommand_from $commands" -a get -d 'Print a record'
complete -c coachvault -n "not __fish_seen_subcommand_from $commands" -a rm -d 'Remove a record'
complete -c coachvault -n "not __fish_seen_subcommand_from $commands" -a ls -d 'List record keys'
complete -c coachvault -n "not __fish_seen_subcommand_from $commands" -a export -d 'Export decrypted records'
complete -c coachvault -n "not __fish_seen_subcommand_from $commands" -a diff -d 'Compare export with vault'
complete -c coachvault -n "not __fish_seen_subcommand_from $commands" -a status -d 'Show vault status'
complete -c coachvault -n "not __fish_seen_subcommand_from $commands" -a compact -d 'Compact records.db'
complete -c coachvault -n "not __fish_seen_subcommand_from $commands" -a keyring -d 'Manage passphrase in OS keyring'
complete -c coachvault -n "not __fish_seen_subcommand_from $commands" -a help -d 'Show help'
complete -c coachvault -n "not __fish_seen_subcommand_from $commands" -a completion -d 'Generate completions'

# collections for record commands
complete -c coachvault -n "__fish_seen_subcommand_from get rm put ls" -a "(coachvault ls 2>/dev/null | sed -n 's/^  \([^:]*\):.*/\1/p' | sort -u)"

# export flags
complete -c coachvault -n "__fish_seen_subcommand_from export" -l out -r -F -d 'Write export to file'

# diff takes an export file
complete -c coachvault -n "__fish_seen_subcommand_from diff" -F

# keyring subcommands
complete -c coachvault -n "__fish_seen_subcommand_from keyring" -a "save delete status"

# help completions
complete -c coachvault -n "__fish_seen_subcommand_from help" -a "$commands"

# completion completions
complete -c coachvault -n "__fish_seen_subcommand_from completion" -a "bash zsh fish"
`
