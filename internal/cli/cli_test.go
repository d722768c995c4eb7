package cli

import (
	"testing"
)

func TestCommandsRegistered(t *testing.T) {
	if rootCmd == nil {
		t.Fatal("rootCmd should not be nil")
	}

	commands := rootCmd.Commands()
	expectedCommands := map[string]bool{
		"serve":  false,
		"sweep":  false,
		"verify": false,
		"seed":   false,
	}

	for _, cmd := range commands {
		cmdName := cmd.Use
		for key := range expectedCommands {
			if len(cmdName) >= len(key) && cmdName[:len(key)] == key {
				expectedCommands[key] = true
				break
			}
		}
	}

	for cmdName, found := range expectedCommands {
		if !found {
			t.Errorf("expected command '%s' to be registered with root command", cmdName)
		}
	}
}

func TestVerifyRequiresKey(t *testing.T) {
	flag := verifyCmd.Flags().Lookup("key")
	if flag == nil {
		t.Fatal("verify command should define --key")
	}
	if req, ok := flag.Annotations["cobra_annotation_bash_completion_one_required_flag"]; !ok || len(req) == 0 {
		t.Error("--key should be marked required")
	}
}
