package status

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// EntryPrefix marks the server list entry owned by [FileSink].
const EntryPrefix = "HiveSearch: "

// Server is an entry of a server list file.
type Server struct {
	Name string `yaml:"name"`
	IP   string `yaml:"ip,omitempty"`
	Icon string `yaml:"icon,omitempty"`
}

// ServerList is the content of a server list file.
type ServerList struct {
	Servers []Server `yaml:"servers"`
}

// FileSink keeps one entry of a YAML server list file up to date.
// Other entries of the file are left as they are.
type FileSink struct {
	Path string
}

func (s FileSink) Apply(cmd Command) error {
	list, err := ReadServerList(s.Path)
	if err != nil {
		return err
	}

	entry := Server{
		Name: EntryPrefix + cmd.Title(),
		Icon: cmd.Icon,
	}
	if cmd.Kind == SetToOneHost {
		entry.IP = cmd.Addr.String()
	}

	found := false
	for i, srv := range list.Servers {
		if strings.HasPrefix(srv.Name, EntryPrefix) {
			list.Servers[i] = entry
			found = true
			break
		}
	}
	if !found {
		list.Servers = append(list.Servers, entry)
	}

	return writeServerList(s.Path, list)
}

// ReadServerList reads a server list file. A missing file is an empty list.
func ReadServerList(path string) (ServerList, error) {
	var list ServerList

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return list, nil
		}
		return list, fmt.Errorf("read server list: %w", err)
	}

	if err := yaml.Unmarshal(data, &list); err != nil {
		return list, fmt.Errorf("parse server list: %w", err)
	}

	return list, nil
}

// writeServerList replaces the file atomically, so readers never see a partial list.
func writeServerList(path string, list ServerList) error {
	data, err := yaml.Marshal(list)
	if err != nil {
		return fmt.Errorf("encode server list: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace server list: %w", err)
	}

	return nil
}
