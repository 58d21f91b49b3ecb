package core

import (
	"errors"
	"sync"
)

// CommandHandler is a function that handles a command with raw frame data
// The handler is responsible for decoding its own arguments from the data pointer
type CommandHandler func(data *[]byte) error

// Command represents a host command or a firmware response
type Command struct {
	ID      uint16
	Name    string
	Format  string // argument description, e.g. "octave=%c codes=%*u"
	Handler CommandHandler
}

var (
	ErrUnknownCommand   = errors.New("unknown command")
	ErrDuplicateCommand = errors.New("command id already registered")
)

// CommandRegistry holds all registered commands. IDs are fixed by the
// protocol package so the host needs no dictionary exchange.
type CommandRegistry struct {
	mu         sync.RWMutex
	commands   map[uint16]*Command
	nameToID   map[string]uint16
	order      []uint16
	dictionary string
}

var globalRegistry = NewCommandRegistry()

// NewCommandRegistry creates a new command registry
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{
		commands: make(map[uint16]*Command),
		nameToID: make(map[string]uint16),
	}
}

// RegisterCommand registers a command handler on the global registry
func RegisterCommand(id uint16, name string, format string, handler CommandHandler) error {
	return globalRegistry.Register(id, name, format, handler)
}

// RegisterResponse registers a response message (firmware -> host)
func RegisterResponse(id uint16, name string, format string) error {
	return globalRegistry.Register(id, name, format, nil)
}

// Register adds a command to the registry
func (r *CommandRegistry) Register(id uint16, name string, format string, handler CommandHandler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.commands[id]; ok {
		if existing.Name == name {
			existing.Format = format
			existing.Handler = handler
			r.rebuildDictionary()
			return nil
		}
		return ErrDuplicateCommand
	}

	r.commands[id] = &Command{
		ID:      id,
		Name:    name,
		Format:  format,
		Handler: handler,
	}
	r.nameToID[name] = id
	r.order = append(r.order, id)

	r.rebuildDictionary()
	return nil
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

// Dispatch calls the appropriate command handler
func (r *CommandRegistry) Dispatch(cmdID uint16, data *[]byte) error {
	cmd, ok := r.GetCommand(cmdID)
	if !ok || cmd.Handler == nil {
		return ErrUnknownCommand
	}

	return cmd.Handler(data)
}

// snapshot copies every message, ordered by ID
func (r *CommandRegistry) snapshot() []Command {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cmds := make([]Command, 0, len(r.commands))
	for _, id := range r.order {
		cmds = append(cmds, *r.commands[id])
	}
	for i := 1; i < len(cmds); i++ {
		for j := i; j > 0 && cmds[j].ID < cmds[j-1].ID; j-- {
			cmds[j], cmds[j-1] = cmds[j-1], cmds[j]
		}
	}
	return cmds
}

// GetDictionary returns one "id name format" line per registered message
func (r *CommandRegistry) GetDictionary() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dictionary
}

// rebuildDictionary rebuilds the dictionary string
// Must be called with lock held
func (r *CommandRegistry) rebuildDictionary() {
	dict := ""
	for _, id := range r.order {
		cmd := r.commands[id]
		dict += utoa(uint32(cmd.ID)) + " " + cmd.Name
		if cmd.Format != "" {
			dict += " " + cmd.Format
		}
		dict += "\n"
	}
	r.dictionary = dict
}

// GetGlobalRegistry returns the global command registry
func GetGlobalRegistry() *CommandRegistry {
	return globalRegistry
}
