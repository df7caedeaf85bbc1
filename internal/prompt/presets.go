package prompt

import (
	"fmt"
	"sort"
)

// presets are literal questions common package managers and tools ask.
var presets = map[string]Rule{
	"apt_confirmation":     {Question: "Do you want to continue? [Y/n]", Answer: "Y", Newline: true},
	"yum_confirmation":     {Question: "Is this ok [y/d/N]:", Answer: "y", Newline: true},
	"dnf_confirmation":     {Question: "Is this ok [y/N]:", Answer: "y", Newline: true},
	"pacman_confirmation":  {Question: "Proceed with installation? [Y/n]", Answer: "Y", Newline: true},
	"ssh_host_key":         {Question: "Are you sure you want to continue connecting (yes/no", Answer: "yes", Newline: true},
	"npm_ok":               {Question: "Is this OK? (yes)", Answer: "yes", Newline: true},
	"y_n_generic":          {Question: "[y/n]", Answer: "y", Newline: true},
	"yes_no_generic":       {Question: "(yes/no)", Answer: "yes", Newline: true},
	"press_enter":          {Question: "Press [ENTER] to continue", Newline: true},
	"overwrite_confirm":    {Question: "overwrite?", Answer: "y", Newline: true},
	"debconf_restart_prmt": {Question: "Restart services during package upgrades without asking? [yes/no]", Answer: "yes", Newline: true},
}

// Preset returns the built-in rule registered under name.
func Preset(name string) (Rule, error) {
	r, ok := presets[name]
	if !ok {
		return Rule{}, fmt.Errorf("unknown response preset %q", name)
	}
	return r, nil
}

// PresetNames lists the built-in rule names in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for n := range presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
