package main

import (
	"encoding/json"
	"fmt"
	"text/template"

	"github.com/alessio/shellescape"
)

// DefaultNodeTemplate renders one Ansible inventory host line.
const DefaultNodeTemplate = `{{.Host}} host_containers={{json .Containers | bash_escape}} cpus={{.CPUs}} memory={{.Memory}} disks={{json .Disks | bash_escape}}
`

func ParseTpl(r string) (*template.Template, error) {
	tpl := template.New("tpl")

	tpl.Funcs(template.FuncMap{
		"bash_escape": func(s interface{}) string {
			return shellescape.Quote(fmt.Sprint(s))
		},
		"json": func(v interface{}) (string, error) {
			b, err := json.Marshal(v)
			return string(b), err
		},
	})

	return tpl.Parse(r)
}
