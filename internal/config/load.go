package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

const (
	groupSectionPrefix   = "group."
	synapseSectionPrefix = "synapses."
	ioSectionPrefix      = "io."
)

var ErrUnknownFormat = errors.New("unknown config format")

// Load reads a blueprint from path, choosing the format by extension, and
// validates it.
func Load(path string) (Simulation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Simulation{}, fmt.Errorf("read config %s: %w", path, err)
	}
	var sim Simulation
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ini", ".cfg", ".conf":
		sim, err = ParseINI(data)
	case ".yaml", ".yml":
		sim, err = ParseYAML(data)
	default:
		return Simulation{}, fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}
	if err != nil {
		return Simulation{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := sim.Validate(); err != nil {
		return Simulation{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return sim, nil
}

// ParseINI maps [network] and [run] directly and collects one [group.<name>]
// section per neuron group, one [synapses.<name>] section per synapse group
// and one [io.<name>] section per sensor or actuator binding, in file order. Keys a section omits keep their defaults.
func ParseINI(data []byte) (Simulation, error) {
	file, err := ini.LoadSources(ini.LoadOptions{UnescapeValueCommentSymbols: true}, data)
	if err != nil {
		return Simulation{}, err
	}

	sim := Default()
	for _, sec := range file.Sections() {
		name := sec.Name()
		switch {
		case name == ini.DefaultSection:
			if len(sec.Keys()) > 0 {
				return Simulation{}, fmt.Errorf("keys outside any section: %s", strings.Join(sec.KeyStrings(), ", "))
			}
		case name == "network":
			if err := sec.MapTo(&sim.Network); err != nil {
				return Simulation{}, fmt.Errorf("map [network]: %w", err)
			}
		case name == "run":
			if err := sec.MapTo(&sim.Run); err != nil {
				return Simulation{}, fmt.Errorf("map [run]: %w", err)
			}
		case strings.HasPrefix(name, groupSectionPrefix):
			g := DefaultGroup()
			if err := sec.MapTo(&g); err != nil {
				return Simulation{}, fmt.Errorf("map [%s]: %w", name, err)
			}
			g.Name = strings.TrimPrefix(name, groupSectionPrefix)
			sim.Groups = append(sim.Groups, g)
		case strings.HasPrefix(name, synapseSectionPrefix):
			c := DefaultSynapseGroup()
			if err := sec.MapTo(&c); err != nil {
				return Simulation{}, fmt.Errorf("map [%s]: %w", name, err)
			}
			c.Name = strings.TrimPrefix(name, synapseSectionPrefix)
			sim.SynapseGroups = append(sim.SynapseGroups, c)
		case strings.HasPrefix(name, ioSectionPrefix):
			c := DefaultIO()
			if err := sec.MapTo(&c); err != nil {
				return Simulation{}, fmt.Errorf("map [%s]: %w", name, err)
			}
			c.Name = strings.TrimPrefix(name, ioSectionPrefix)
			sim.IO = append(sim.IO, c)
		default:
			return Simulation{}, fmt.Errorf("unknown section [%s]", name)
		}
	}
	return sim, nil
}

type iniSection struct {
	name string
	v    any
}

// WriteINI renders sim in the layout ParseINI reads.
func WriteINI(w io.Writer, sim Simulation) error {
	sections := []iniSection{{"network", &sim.Network}}
	for i := range sim.Groups {
		sections = append(sections, iniSection{groupSectionPrefix + sim.Groups[i].Name, &sim.Groups[i]})
	}
	for i := range sim.SynapseGroups {
		sections = append(sections, iniSection{synapseSectionPrefix + sim.SynapseGroups[i].Name, &sim.SynapseGroups[i]})
	}
	for i := range sim.IO {
		sections = append(sections, iniSection{ioSectionPrefix + sim.IO[i].Name, &sim.IO[i]})
	}
	sections = append(sections, iniSection{"run", &sim.Run})

	file := ini.Empty()
	for _, s := range sections {
		sec, err := file.NewSection(s.name)
		if err != nil {
			return err
		}
		if err := sec.ReflectFrom(s.v); err != nil {
			return fmt.Errorf("reflect [%s]: %w", s.name, err)
		}
	}
	_, err := file.WriteTo(w)
	return err
}

// ParseYAML decodes a blueprint, rejecting unknown keys. Omitted keys keep
// their defaults, including inside each group entry.
func ParseYAML(data []byte) (Simulation, error) {
	sim := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&sim); err != nil && !errors.Is(err, io.EOF) {
		return Simulation{}, err
	}
	return sim, nil
}

func WriteYAML(w io.Writer, sim Simulation) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(sim); err != nil {
		return err
	}
	return enc.Close()
}

func (g *GroupConfig) UnmarshalYAML(node *yaml.Node) error {
	type plain GroupConfig
	p := plain(DefaultGroup())
	if err := node.Decode(&p); err != nil {
		return err
	}
	*g = GroupConfig(p)
	return nil
}

func (c *SynapseGroupConfig) UnmarshalYAML(node *yaml.Node) error {
	type plain SynapseGroupConfig
	p := plain(DefaultSynapseGroup())
	if err := node.Decode(&p); err != nil {
		return err
	}
	*c = SynapseGroupConfig(p)
	return nil
}

func (c *IOConfig) UnmarshalYAML(node *yaml.Node) error {
	type plain IOConfig
	p := plain(DefaultIO())
	if err := node.Decode(&p); err != nil {
		return err
	}
	*c = IOConfig(p)
	return nil
}
