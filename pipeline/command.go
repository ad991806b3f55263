// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pipeline

import "strings"

// Command is one entry in the fixed command vocabulary.
type Command int

const (
	// CommandUnknown is the zero value; it never dispatches.
	CommandUnknown Command = iota
	CommandBlock
	CommandBlockDelete
	CommandDelete
	CommandRevert
	CommandAddUser
	CommandAddUserGroup
	CommandAddHostmask
	CommandRemoveUser
	CommandRemoveGroup
	CommandRemoveHostmask
	CommandWikiHelp
	CommandPermsHelp

	commandCount
)

// Kind says where a command executes.
type Kind int

const (
	// Local commands touch only the permission store and run on the
	// dispatcher goroutine.
	Local Kind = iota

	// Remote commands call the content site and run on a worker.
	Remote
)

func (k Kind) String() string {
	if k == Remote {
		return "remote"
	}
	return "local"
}

type definition struct {
	name    string
	aliases []string
	arity   int
	kind    Kind
	usage   string
}

// definitions is indexed by Command.
var definitions = [commandCount]definition{
	CommandUnknown:        {},
	CommandBlock:          {name: "block", arity: 1, kind: Remote, usage: "username"},
	CommandBlockDelete:    {name: "blockdelete", aliases: []string{"bd"}, arity: 1, kind: Remote, usage: "username"},
	CommandDelete:         {name: "delete", arity: 1, kind: Remote, usage: "pagename"},
	CommandRevert:         {name: "revert", arity: 2, kind: Remote, usage: "actor title"},
	CommandAddUser:        {name: "adduser", arity: 3, kind: Local, usage: "username hostmask group"},
	CommandAddUserGroup:   {name: "addusergroup", arity: 2, kind: Local, usage: "username group"},
	CommandAddHostmask:    {name: "addhostmask", arity: 2, kind: Local, usage: "username hostmask"},
	CommandRemoveUser:     {name: "removeuser", arity: 1, kind: Local, usage: "username"},
	CommandRemoveGroup:    {name: "removegroup", arity: 2, kind: Local, usage: "username group"},
	CommandRemoveHostmask: {name: "removehostmask", arity: 2, kind: Local, usage: "username hostmask"},
	CommandWikiHelp:       {name: "wikihelp", arity: 0, kind: Local},
	CommandPermsHelp:      {name: "permshelp", arity: 0, kind: Local},
}

var byName = func() map[string]Command {
	names := make(map[string]Command)
	for command := CommandUnknown + 1; command < commandCount; command++ {
		names[definitions[command].name] = command
		for _, alias := range definitions[command].aliases {
			names[alias] = command
		}
	}
	return names
}()

// Lookup resolves a command name or alias. Matching is
// case-insensitive.
func Lookup(name string) (Command, bool) {
	command, ok := byName[strings.ToLower(name)]
	return command, ok
}

// Name is the canonical name, which is also the name authorization
// patterns match against. Aliases authorize as their canonical name.
func (c Command) Name() string {
	if c <= CommandUnknown || c >= commandCount {
		return "unknown"
	}
	return definitions[c].name
}

func (c Command) String() string { return c.Name() }

// Arity is the exact number of arguments the command takes.
func (c Command) Arity() int {
	if c <= CommandUnknown || c >= commandCount {
		return 0
	}
	return definitions[c].arity
}

// Kind reports whether the command runs locally or on the content
// site.
func (c Command) Kind() Kind {
	if c <= CommandUnknown || c >= commandCount {
		return Local
	}
	return definitions[c].kind
}

// Usage renders the command with its argument names, for example
// ".block username".
func (c Command) Usage(sigil string) string {
	usage := sigil + c.Name()
	if c > CommandUnknown && c < commandCount && definitions[c].usage != "" {
		usage += " " + definitions[c].usage
	}
	return usage
}

// helpText lists commands for the two help commands.
func helpText(sigil string, commands ...Command) string {
	usages := make([]string, len(commands))
	for i, command := range commands {
		usages[i] = command.Usage(sigil)
	}
	return "Commands available: " + strings.Join(usages, ", ")
}

func wikiHelp(sigil string) string {
	return helpText(sigil, CommandBlock, CommandBlockDelete, CommandDelete, CommandRevert, CommandPermsHelp)
}

func permsHelp(sigil string) string {
	return helpText(sigil, CommandAddUser, CommandAddUserGroup, CommandAddHostmask,
		CommandRemoveUser, CommandRemoveGroup, CommandRemoveHostmask)
}
