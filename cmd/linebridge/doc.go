// Command linebridge is the CLI entry point for the Discord / LINE chat
// bridge. The discord and line subcommands run the two long-lived adapter
// processes; the remaining subcommands inspect and manage configuration and
// active bindings.
package main
