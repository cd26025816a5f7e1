package handlers

// Action types for logging and user updates
const (
	ActionCommandStart     = "command_start"
	ActionCommandHelp      = "command_help"
	ActionCommandPing      = "command_ping"
	ActionCommandBroadcast = "command_broadcast"
	ActionPrivateMessage   = "private_message"
	ActionGroupMessage     = "group_message"
	ActionBroadcastArm     = "broadcast_arm"
	ActionBroadcastSend    = "broadcast_send"
	ActionEditReveal       = "edit_reveal"
	ActionEditDismiss      = "edit_dismiss"
)

// Callback data of buttons that carry no arguments.
const (
	CallbackHelpExpand      = "help_expand"
	CallbackHelpMinimize    = "help_minimize"
	CallbackBroadcastUsers  = "broadcast_users"
	CallbackBroadcastGroups = "broadcast_groups"
)
