package core

import (
	"bytes"
	"sync"

	"p600/tinycompress"
)

// Dictionary describes the firmware to the host: version, constants and the
// registered commands and responses, as zlib-wrapped JSON.
type Dictionary struct {
	mu         sync.RWMutex
	constants  map[string]string
	commandReg *CommandRegistry
	version    string
	cachedDict []byte
}

var globalDictionary = NewDictionary(globalRegistry)

// NewDictionary creates a new dictionary over cmdReg
func NewDictionary(cmdReg *CommandRegistry) *Dictionary {
	return &Dictionary{
		constants:  make(map[string]string),
		commandReg: cmdReg,
		version:    "p600-tuner-0.1.0",
	}
}

// GetGlobalDictionary returns the dictionary of the global registry
func GetGlobalDictionary() *Dictionary {
	return globalDictionary
}

// RegisterConstant registers a numeric constant in the global dictionary
func RegisterConstant(name string, value uint32) {
	globalDictionary.AddConstant(name, utoa(value))
}

// AddConstant adds a constant, dropping any cached build.
func (d *Dictionary) AddConstant(name string, value string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.constants[name] = value
	d.cachedDict = nil
}

// SetVersion sets the firmware version string
func (d *Dictionary) SetVersion(version string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.version = version
	d.cachedDict = nil
}

// BuildDictionary builds and caches the compressed dictionary. Call it after
// every command is registered.
func (d *Dictionary) BuildDictionary() {
	commands := d.commandReg.snapshot()

	d.mu.Lock()
	defer d.mu.Unlock()

	jsonData := d.buildJSONLocked(commands)

	var buf bytes.Buffer
	w := tinycompress.NewWriter(&buf, len(jsonData))
	if _, err := w.Write(jsonData); err != nil {
		DebugPrintln("[DICT] compression failed: " + err.Error())
		d.cachedDict = jsonData
		return
	}
	if err := w.Close(); err != nil {
		DebugPrintln("[DICT] compression failed: " + err.Error())
		d.cachedDict = jsonData
		return
	}
	d.cachedDict = buf.Bytes()
	DebugPrintln("[DICT] " + itoa(len(jsonData)) + " bytes, " + itoa(len(d.cachedDict)) + " compressed")
}

// Generate returns the compressed dictionary, building it on first use.
func (d *Dictionary) Generate() []byte {
	d.mu.RLock()
	cached := d.cachedDict
	d.mu.RUnlock()
	if cached == nil {
		d.BuildDictionary()
		d.mu.RLock()
		cached = d.cachedDict
		d.mu.RUnlock()
	}
	return cached
}

// buildJSONLocked writes the dictionary without encoding/json, which the
// firmware build leaves out. Keys are sorted so the output is stable.
func (d *Dictionary) buildJSONLocked(commands []Command) []byte {
	result := make([]byte, 0, 512)

	result = append(result, `{"version":"`...)
	result = append(result, d.version...)
	result = append(result, `","config":{`...)

	names := make([]string, 0, len(d.constants))
	for name := range d.constants {
		names = append(names, name)
	}
	sortStrings(names)
	for i, name := range names {
		if i > 0 {
			result = append(result, ',')
		}
		result = append(result, '"')
		result = append(result, name...)
		result = append(result, `":"`...)
		result = append(result, d.constants[name]...)
		result = append(result, '"')
	}

	result = append(result, `},"commands":{`...)
	result = appendMessages(result, commands, true)
	result = append(result, `},"responses":{`...)
	result = appendMessages(result, commands, false)
	result = append(result, "}}"...)
	return result
}

// appendMessages writes "name format":id pairs for the commands with a
// handler, or for the responses.
func appendMessages(result []byte, commands []Command, handled bool) []byte {
	first := true
	for _, cmd := range commands {
		if (cmd.Handler != nil) != handled {
			continue
		}
		if !first {
			result = append(result, ',')
		}
		result = append(result, '"')
		result = append(result, cmd.Name...)
		if cmd.Format != "" {
			result = append(result, ' ')
			result = append(result, cmd.Format...)
		}
		result = append(result, `":`...)
		result = append(result, utoa(uint32(cmd.ID))...)
		first = false
	}
	return result
}

// sortStrings is an insertion sort; the sort package is avoided on target.
func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j] < s[j-1]; j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}
