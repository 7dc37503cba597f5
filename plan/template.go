package plan

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"text/template"

	"github.com/goccy/go-yaml"

	"github.com/zinrai/seedplan/topology"
)

const (
	defaultRouterTemplate = `{{ range .Interfaces }}ip link set dev {{ .Name }} address {{ .MAC }}
ip -6 addr add {{ .LLA }}/64 dev {{ .Name }}
ip addr add {{ .Address }} dev {{ .Name }}
{{ if .Netem }}tc qdisc add dev {{ .Name }} root netem {{ .Netem }}
{{ end }}{{ end }}{{ if .RouterID }}ip addr add {{ .RouterID }}/32 dev lo
{{ end }}sysctl -w net.ipv4.ip_forward=1
sysctl -w net.ipv6.conf.all.forwarding=1
{{ range .StartCommands }}{{ . }}
{{ end }}`

	defaultHostTemplate = `{{ range .Interfaces }}ip link set dev {{ .Name }} address {{ .MAC }}
ip -6 addr add {{ .LLA }}/64 dev {{ .Name }}
ip addr add {{ .Address }} dev {{ .Name }}
{{ if .Netem }}tc qdisc add dev {{ .Name }} root netem {{ .Netem }}
{{ end }}{{ end }}{{ range .StartCommands }}{{ . }}
{{ end }}`
)

// Templates holds node command templates for each role. Each non-empty
// output line becomes one command.
type Templates struct {
	Router      string `yaml:"router"`
	Host        string `yaml:"host"`
	RouteServer string `yaml:"route_server"`
}

// TemplateData holds data for template rendering.
type TemplateData struct {
	Name          string
	ASN           int
	Role          string
	RouterID      string
	Interfaces    []InterfaceData
	StartCommands []string
}

// InterfaceData describes one configured interface.
type InterfaceData struct {
	Name    string
	Network string
	Address string // CIDR
	MAC     string
	LLA     string
	Netem   string // netem arguments, empty when unshaped
}

// DefaultTemplates returns the built-in templates.
func DefaultTemplates() *Templates {
	return &Templates{
		Router:      defaultRouterTemplate,
		Host:        defaultHostTemplate,
		RouteServer: defaultRouterTemplate,
	}
}

// LoadTemplates loads templates from a YAML file. Roles the file leaves
// empty keep the built-in template.
func LoadTemplates(path string) (*Templates, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	t := DefaultTemplates()
	var loaded Templates
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return nil, err
	}
	if loaded.Router != "" {
		t.Router = loaded.Router
	}
	if loaded.Host != "" {
		t.Host = loaded.Host
	}
	if loaded.RouteServer != "" {
		t.RouteServer = loaded.RouteServer
	}

	return t, nil
}

// Render renders the template of role with the given data.
func (t *Templates) Render(role topology.NodeRole, data TemplateData) ([]Command, error) {
	var tmplStr string
	switch role {
	case topology.RoleRouter:
		tmplStr = t.Router
	case topology.RoleHost:
		tmplStr = t.Host
	case topology.RoleRouteServer:
		tmplStr = t.RouteServer
	default:
		return nil, fmt.Errorf("no template for role %s", role)
	}

	tmpl, err := template.New(role.String()).Parse(tmplStr)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, err
	}

	var cmds []Command
	for _, line := range strings.Split(buf.String(), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			cmds = append(cmds, Command{Cmd: line})
		}
	}
	return cmds, nil
}
