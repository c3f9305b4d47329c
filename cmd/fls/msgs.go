package fls

import (
	_ "embed"
	"strings"
)

// Short messages (one-liners)
const (
	// Command descriptions
	MsgRootShort        = "A file stack for the command line"
	MsgPushShort        = "Push files onto the stack"
	MsgCopyShort        = "Copy the top entries to a destination"
	MsgMoveShort        = "Move the top entries to a destination"
	MsgSymlinkShort     = "Symlink the top entries from a destination"
	MsgDropShort        = "Pop entries without acting on them"
	MsgPrintShort       = "Print the stack, top first"
	MsgInteractiveShort = "Send raw protocol messages to the daemon"
	MsgStopShort        = "Stop the daemon"
	MsgConfigShort      = "Show the effective configuration"
	MsgDaemonShort      = "Run the stack daemon"
	MsgVersionShort     = "Print version information"
	MsgCompletionShort  = "Generate shell completion script"

	// Status messages
	MsgConfigWritten = "Wrote %s\n"
	MsgVersionFormat = "fls version %s\n  commit: %s\n  built:  %s\n"

	// Error messages
	MsgErrConfigExists = "config file %s already exists"
	MsgErrBadCount     = "count must be at least 1, got %d"

	// Flag descriptions
	MsgFlagVerbose   = "Increase verbosity (-v INFO, -vv DEBUG, -vvv TRACE)"
	MsgFlagDryRun    = "Show the command for the top entry without running it"
	MsgFlagYes       = "Do not ask for confirmation"
	MsgFlagOutput    = "Output format: auto, term, text, json or yaml"
	MsgFlagSocketDir = "Directory holding the daemon socket"
	MsgFlagConfig    = "Config file (default $XDG_CONFIG_HOME/fls/config.toml)"
	MsgFlagCount     = "Number of entries to act on"
	MsgFlagInheritFD = "Serve on the listener inherited on fd 3"
	MsgFlagSocket    = "Socket path to serve on"
	MsgFlagTemplate  = "Print a commented starter config instead"
	MsgFlagWrite     = "Write the starter config to the config file location"
)

// Long messages from embedded files
var (
	//go:embed msgs/root-long.txt
	msgRootLongRaw string
	MsgRootLong    = strings.TrimSpace(msgRootLongRaw)

	//go:embed msgs/root-example.txt
	msgRootExampleRaw string
	MsgRootExample    = strings.TrimRight(msgRootExampleRaw, "\n")

	//go:embed msgs/popact-long.txt
	msgPopActLongRaw string
	MsgPopActLong    = strings.TrimSpace(msgPopActLongRaw)

	//go:embed msgs/config-long.txt
	msgConfigLongRaw string
	MsgConfigLong    = strings.TrimSpace(msgConfigLongRaw)

	//go:embed msgs/daemon-long.txt
	msgDaemonLongRaw string
	MsgDaemonLong    = strings.TrimSpace(msgDaemonLongRaw)

	//go:embed msgs/interactive-long.txt
	msgInteractiveLongRaw string
	MsgInteractiveLong    = strings.TrimSpace(msgInteractiveLongRaw)

	//go:embed msgs/completion-long.txt
	msgCompletionLongRaw string
	MsgCompletionLong    = strings.TrimSpace(msgCompletionLongRaw)

	//go:embed msgs/usage-template.txt
	msgUsageTemplateRaw string
	MsgUsageTemplate    = strings.TrimSpace(msgUsageTemplateRaw)
)
