package core

import (
	"errors"
	"sync"
)

var ErrUnknownCommand = errors.New("unknown command")

// CommandHandler handles one command. It decodes its own arguments from data.
type CommandHandler func(data *[]byte) error

// Command is one registered link message. Responses have no handler.
type Command struct {
	ID      uint16
	Name    string
	Format  string // Argument format, e.g. "axis=%c dir=%c"
	Handler CommandHandler
}

// CommandRegistry maps fixed message IDs to handlers
type CommandRegistry struct {
	mu       sync.RWMutex
	commands map[uint16]*Command
	nameToID map[string]uint16
}

// NewCommandRegistry creates an empty registry
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{
		commands: make(map[uint16]*Command),
		nameToID: make(map[string]uint16),
	}
}

// Register adds a command under a fixed ID, replacing any previous entry
// with that ID
func (r *CommandRegistry) Register(id uint16, name, format string, handler CommandHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.commands[id]; ok {
		delete(r.nameToID, old.Name)
	}
	r.commands[id] = &Command{ID: id, Name: name, Format: format, Handler: handler}
	r.nameToID[name] = id
}

// GetCommand retrieves a command by ID
func (r *CommandRegistry) GetCommand(id uint16) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[id]
	return cmd, ok
}

// GetCommandByName retrieves a command by name
func (r *CommandRegistry) GetCommandByName(name string) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.nameToID[name]
	if !ok {
		return nil, false
	}
	return r.commands[id], true
}

// Count returns the number of registered commands
func (r *CommandRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}

// Dispatch calls the handler registered for cmdID
func (r *CommandRegistry) Dispatch(cmdID uint16, data *[]byte) error {
	cmd, ok := r.GetCommand(cmdID)
	if !ok || cmd.Handler == nil {
		return ErrUnknownCommand
	}
	return cmd.Handler(data)
}

// Describe lists the registered messages, one "id name format" per line,
// in ID order
func (r *CommandRegistry) Describe() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var max uint16
	for id := range r.commands {
		if id > max {
			max = id
		}
	}
	s := ""
	for id := uint16(0); id <= max; id++ {
		cmd, ok := r.commands[id]
		if !ok {
			continue
		}
		s += utoa(uint32(id)) + " " + cmd.Name
		if cmd.Format != "" {
			s += " " + cmd.Format
		}
		s += "\n"
	}
	return s
}
