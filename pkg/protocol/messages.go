package protocol

import (
	"fmt"
	"strings"
)

// ANSI colour escapes used in replies.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[93m"
)

// Actions understood by the server.
const (
	ActionExit             = "/exit"
	ActionMsg              = "/msg"
	ActionBroadcast        = "/broadcast"
	ActionCreateGroup      = "/create_group"
	ActionJoinGroup        = "/join_group"
	ActionLeaveGroup       = "/leave_group"
	ActionGroupMsg         = "/group_msg"
	ActionListAllMembers   = "/list_all_members"
	ActionListAllGroups    = "/list_all_groups"
	ActionListGroupMembers = "/list_group_members"
	ActionHelp             = "/help"
)

const Banner = `
██╗    ██╗███████╗██╗      ██████╗ ██████╗ ███╗   ███╗███████╗
██║    ██║██╔════╝██║     ██╔════╝██╔═══██╗████╗ ████║██╔════╝
██║ █╗ ██║█████╗  ██║     ██║     ██║   ██║██╔████╔██║█████╗
██║███╗██║██╔══╝  ██║     ██║     ██║   ██║██║╚██╔╝██║██╔══╝
╚███╔███╔╝███████╗███████╗╚██████╗╚██████╔╝██║ ╚═╝ ██║███████╗
 ╚══╝╚══╝ ╚══════╝╚══════╝ ╚═════╝ ╚═════╝ ╚═╝     ╚═╝╚══════╝
`

const (
	PasswordPrompt = "Enter your password: "
	AuthFailed     = "Authentication failed."
	GroupCreated   = colorYellow + "Group created." + colorReset
	AlreadyMember  = colorYellow + "You are already in this group." + colorReset
	ServerShutdown = colorRed + "Server is shutting down." + colorReset

	ErrInvalidAction     = colorRed + "Error : Invalid Action." + colorReset
	ErrRecipientNotFound = colorRed + "Error : Recipient not found in network." + colorReset
	ErrGroupExists       = colorRed + "Error : This group already exists!" + colorReset
	ErrNoSuchGroup       = colorRed + "Error : This group does not exist!" + colorReset
	ErrNotMember         = colorRed + "Error : You are not in this group." + colorReset
)

// Welcome is the first thing a new connection sees.
func Welcome(room string) string {
	return "Welcome to " + room + "!\nEnter your username: "
}

// AlreadyLoggedIn rejects a second login for an online user.
func AlreadyLoggedIn(user string) string {
	return colorRed + "Error : " + user + " is already logged in." + colorReset
}

// LineTooLong reports an oversized command line.
func LineTooLong(limit int) string {
	return fmt.Sprintf("%sError : Message too long (max %d bytes).%s", colorRed, limit, colorReset)
}

// Usage formats a usage hint for an action.
func Usage(action string) string {
	switch action {
	case ActionExit:
		return colorYellow + "Usage : /exit\n(Do not add any whitespace or other characters)" + colorReset
	case ActionMsg:
		return colorYellow + "Usage : /msg <recipient_username> <message>" + colorReset
	case ActionGroupMsg:
		return colorYellow + "Usage : /group_msg <group_name> <message>" + colorReset
	default:
		return colorYellow + "Usage : " + action + " <group_name>" + colorReset
	}
}

func UserJoinedChat(user string) string {
	return colorYellow + user + " has joined the chat!" + colorReset
}

func UserLeftChat(user string) string {
	return colorYellow + user + " has left the chat!" + colorReset
}

func YouJoined(group string) string {
	return colorYellow + "You joined " + group + "." + colorReset
}

func YouLeft(group string) string {
	return colorYellow + "You left " + group + "." + colorReset
}

func MemberJoined(user, group string) string {
	return colorYellow + user + " joined " + group + "." + colorReset
}

func MemberLeft(user, group string) string {
	return colorYellow + user + " left " + group + "." + colorReset
}

// Private formats a direct message.
func Private(from, text string) string {
	return "[" + from + "]: " + text
}

// Broadcast formats a message to everyone.
func Broadcast(from, text string) string {
	return "[" + from + " on broadcast]: " + text
}

// GroupMessage formats a message to a group.
func GroupMessage(from, group, text string) string {
	return "[" + from + " on Group " + group + "]: " + text
}

// List formats names one per line. An empty list yields an informational line.
func List(names []string, empty string) string {
	if len(names) == 0 {
		return colorYellow + empty + colorReset
	}
	return colorYellow + strings.Join(names, "\n") + colorReset
}

// Help is the command summary.
func Help() string {
	var b strings.Builder
	b.WriteString(colorGreen + "List of available actions : " + colorReset + "\n")
	for _, e := range helpEntries {
		fmt.Fprintf(&b, "%s%-34s%s %s\n", colorYellow, e.usage, colorReset, e.desc)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

var helpEntries = []struct{ usage, desc string }{
	{"/msg <recipient's username> <message>", "Send a private message to another user in the chat"},
	{"/broadcast <message>", "Send a message to all the users in the chat"},
	{"/create_group <group_name>", "Create a group for messaging"},
	{"/join_group <group_name>", "Join an existing group"},
	{"/group_msg <group_name> <message>", "Send a message to all the members of the group"},
	{"/leave_group <group_name>", "Leave a group"},
	{"/list_all_members", "Print a list of all members present in the chat"},
	{"/list_all_groups", "Print a list of all groups in the chat"},
	{"/list_group_members <group_name>", "Print a list of all members in a group"},
	{"/help", "Print this help message"},
	{"/exit", "Exit the chat"},
}
