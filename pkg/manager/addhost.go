package manager

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// NormalizeHost applies defaults and validates h the same way a loaded
// config does.
func NormalizeHost(h HostProfile) (HostProfile, error) {
	h.applyDefaults()
	tags := h.Tags[:0:0]
	for _, t := range h.Tags {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	h.Tags = tags
	if err := h.Validate(); err != nil {
		return h, err
	}
	return h, nil
}

// AppendHost adds h to the config file at path, creating the file if needed.
// A .json file stays JSON; anything else is edited as YAML with its comments
// and layout kept. The result is parsed and validated before it replaces the
// original.
func AppendHost(path string, h HostProfile) (HostProfile, error) {
	h, err := NormalizeHost(h)
	if err != nil {
		return h, errors.Wrap(err, "invalid host")
	}
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return h, errors.Wrap(err, "read config")
	}

	var out []byte
	if strings.EqualFold(filepath.Ext(path), ".json") {
		out, err = appendJSON(data, h)
	} else {
		out, err = appendYAML(data, h)
	}
	if err != nil {
		return h, errors.Wrapf(err, "config %s", path)
	}
	if _, err := ParseConfig(out); err != nil {
		return h, errors.Wrapf(err, "config %s after adding %s", path, h.Name)
	}
	return h, writeFileAtomic(path, out)
}

func appendYAML(data []byte, h HostProfile) ([]byte, error) {
	var doc yaml.Node
	if len(bytes.TrimSpace(data)) > 0 {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, errors.Wrap(err, "parse")
		}
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		doc = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}}
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, errors.New("top level is not a mapping")
	}

	var hosts *yaml.Node
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value == "hosts" {
			hosts = root.Content[i+1]
			break
		}
	}
	switch {
	case hosts == nil:
		hosts = &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		root.Content = append(root.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: "hosts"}, hosts)
	case hosts.Kind == yaml.ScalarNode && hosts.Tag == "!!null":
		*hosts = yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	}
	if hosts.Kind != yaml.SequenceNode {
		return nil, errors.New("hosts is not a list")
	}
	if len(hosts.Content) == 0 {
		hosts.Style &^= yaml.FlowStyle
	}

	var item yaml.Node
	if err := item.Encode(h); err != nil {
		return nil, errors.Wrap(err, "encode host")
	}
	hosts.Content = append(hosts.Content, &item)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return nil, errors.Wrap(err, "encode")
	}
	if err := enc.Close(); err != nil {
		return nil, errors.Wrap(err, "encode")
	}
	return buf.Bytes(), nil
}

// appendJSON keeps the legacy JSON layout, including keys this tool does not
// know about.
func appendJSON(data []byte, h HostProfile) ([]byte, error) {
	doc := map[string]json.RawMessage{}
	if len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, errors.Wrap(err, "parse")
		}
	}
	var hosts []json.RawMessage
	if raw, ok := doc["hosts"]; ok && string(raw) != "null" {
		if err := json.Unmarshal(raw, &hosts); err != nil {
			return nil, errors.Wrap(err, "hosts")
		}
	}
	item, err := json.Marshal(h)
	if err != nil {
		return nil, errors.Wrap(err, "encode host")
	}
	hosts = append(hosts, item)
	if doc["hosts"], err = json.Marshal(hosts); err != nil {
		return nil, errors.Wrap(err, "encode hosts")
	}
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "encode")
	}
	return append(out, '\n'), nil
}

// writeFileAtomic replaces path through a temp file in the same directory so
// readers and the web view's watcher never see a partial file.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errors.Wrap(err, "create config dir")
	}
	mode := os.FileMode(0o600)
	if st, err := os.Stat(path); err == nil {
		mode = st.Mode().Perm()
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return errors.Wrap(err, "write config")
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "write config")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "write config")
	}
	if err := os.Chmod(tmp.Name(), mode); err != nil {
		return errors.Wrap(err, "write config")
	}
	return errors.Wrap(os.Rename(tmp.Name(), path), "write config")
}
