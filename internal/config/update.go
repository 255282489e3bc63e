package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// AddHost appends a host to the config file, creating the file if needed.
// Existing YAML structure and comments are preserved.
func AddHost(configPath string, host Host) error {
	root, err := readDocument(configPath)
	if err != nil {
		return err
	}

	docNode := root.Content[0]
	hostsNode := findMapValue(docNode, "hosts")
	if hostsNode == nil || hostsNode.Kind != yaml.SequenceNode {
		hostsNode = &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		setMapValue(docNode, "hosts", hostsNode)
	}

	for _, item := range hostsNode.Content {
		if id := findMapValue(item, "id"); id != nil && id.Value == host.ID {
			return fmt.Errorf("host id '%s' already exists in config", host.ID)
		}
	}

	var hostNode yaml.Node
	if err := hostNode.Encode(host); err != nil {
		return fmt.Errorf("failed to encode host: %w", err)
	}
	hostsNode.Style = 0
	hostsNode.Content = append(hostsNode.Content, &hostNode)

	return writeDocument(configPath, root)
}

// RemoveHost deletes the host with the given id from the config file.
func RemoveHost(configPath, id string) error {
	root, err := readDocument(configPath)
	if err != nil {
		return err
	}

	hostsNode := findMapValue(root.Content[0], "hosts")
	if hostsNode == nil || hostsNode.Kind != yaml.SequenceNode {
		return fmt.Errorf("host '%s' not found in config", id)
	}

	kept := hostsNode.Content[:0]
	found := false
	for _, item := range hostsNode.Content {
		if v := findMapValue(item, "id"); v != nil && v.Value == id {
			found = true
			continue
		}
		kept = append(kept, item)
	}
	if !found {
		return fmt.Errorf("host '%s' not found in config", id)
	}
	hostsNode.Content = kept

	return writeDocument(configPath, root)
}

// readDocument parses configPath as a yaml.Node document. A missing or empty
// file yields a fresh document with only the version key.
func readDocument(configPath string) (*yaml.Node, error) {
	data, err := os.ReadFile(configPath)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var root yaml.Node
	if len(strings.TrimSpace(string(data))) > 0 {
		if err := yaml.Unmarshal(data, &root); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if root.Kind == 0 {
		root = yaml.Node{
			Kind: yaml.DocumentNode,
			Content: []*yaml.Node{{
				Kind: yaml.MappingNode,
				Tag:  "!!map",
			}},
		}
		setMapValue(root.Content[0], "version", &yaml.Node{
			Kind:  yaml.ScalarNode,
			Tag:   "!!int",
			Value: fmt.Sprint(CurrentConfigVersion),
		})
	}

	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, fmt.Errorf("invalid YAML document structure")
	}
	if root.Content[0].Kind != yaml.MappingNode {
		return nil, fmt.Errorf("expected mapping at document root")
	}
	return &root, nil
}

func writeDocument(configPath string, root *yaml.Node) error {
	var buf strings.Builder
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(root); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	encoder.Close()

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	// Inline passwords may live in this file.
	if err := os.WriteFile(configPath, []byte(buf.String()), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// findMapValue finds a value in a mapping node by key name.
func findMapValue(node *yaml.Node, key string) *yaml.Node {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}

	for i := 0; i < len(node.Content)-1; i += 2 {
		if node.Content[i].Kind == yaml.ScalarNode && node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}

	return nil
}

// setMapValue replaces the value for key, appending the pair when absent.
func setMapValue(node *yaml.Node, key string, value *yaml.Node) {
	for i := 0; i < len(node.Content)-1; i += 2 {
		if node.Content[i].Value == key {
			node.Content[i+1] = value
			return
		}
	}
	node.Content = append(node.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
		value)
}
