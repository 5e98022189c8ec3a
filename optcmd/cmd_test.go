package optcmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"
)

const program = `
classes:
  - name: A
    fields:
      - {name: f, type: I}
    methods:
      - name: get
        desc: ()I
        code: |
          v0 = param
          v1 = iget v0 A.f
          v2 = iget v0 A.f
          v3 = add v1 v2
          return v3
      - name: plain
        desc: ()I
        code: |
          v0 = param
          v1 = iget v0 A.f
          return v1
`

func setup(t *testing.T, conf string) (dir, file string) {
	t.Helper()
	dir = t.TempDir()
	file = filepath.Join(dir, "prog.yaml")
	if err := os.WriteFile(file, []byte(program), 0o644); err != nil {
		t.Fatal(err)
	}
	if conf != "" {
		if err := os.WriteFile(filepath.Join(dir, "cse.conf"), []byte(conf), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir, file
}

func execute(t *testing.T, args ...string) (stdout, stderr string, code int) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewCommand("cse")
	cmd.stdout = &out
	cmd.stderr = &errOut
	cmd.FlagSet().SetOutput(&errOut)
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatal(err)
	}
	code = cmd.run()
	return out.String(), errOut.String(), code
}

func value(r *report, name string) (int, bool) {
	for _, m := range r.Metrics {
		if m.Name == name {
			return m.Value, true
		}
	}
	return 0, false
}

func TestJSON(t *testing.T) {
	dir, file := setup(t, "")
	out, errOut, code := execute(t, "-config", dir, "-f", "json", file)
	if code != 0 {
		t.Fatalf("exit status %d: %s", code, errOut)
	}
	var r report
	if err := json.Unmarshal([]byte(out), &r); err != nil {
		t.Fatal(err)
	}
	if n, ok := value(&r, "instructions_eliminated"); !ok || n != 1 {
		t.Errorf("instructions_eliminated = %d, %t; want 1", n, ok)
	}
	if n, _ := value(&r, "eliminated_opcode_iget"); n != 1 {
		t.Errorf("eliminated_opcode_iget = %d, want 1", n)
	}
	want := []changedMethod{{Method: "A.get()I"}}
	if diff := cmp.Diff(want, r.Changed); diff != "" {
		t.Errorf("changed methods differ (-want +got):\n%s", diff)
	}
}

func TestConfigFile(t *testing.T) {
	dir, file := setup(t, "[cse]\nruntime_assertions = true\n")
	out, errOut, code := execute(t, "-config", dir, "-f", "yaml", "-print", file)
	if code != 0 {
		t.Fatalf("exit status %d: %s", code, errOut)
	}
	var r report
	if err := yaml.Unmarshal([]byte(out), &r); err != nil {
		t.Fatal(err)
	}
	if n, _ := value(&r, "instructions_eliminated"); n != 0 {
		t.Errorf("%d instructions eliminated with runtime assertions", n)
	}
	if len(r.Changed) != 1 || !strings.Contains(r.Changed[0].Code, "@cse.trap") {
		t.Errorf("expected an assertion in A.get()I, got %+v", r.Changed)
	}

	// Flags take precedence over the configuration file.
	out, errOut, code = execute(t, "-config", dir, "-f", "yaml", "-runtime-assertions=false", file)
	if code != 0 {
		t.Fatalf("exit status %d: %s", code, errOut)
	}
	r = report{}
	if err := yaml.Unmarshal([]byte(out), &r); err != nil {
		t.Fatal(err)
	}
	if n, _ := value(&r, "instructions_eliminated"); n != 1 {
		t.Errorf("instructions_eliminated = %d, want 1", n)
	}
}

func TestText(t *testing.T) {
	dir, file := setup(t, "")
	out, errOut, code := execute(t, "-config", dir, file)
	if code != 0 {
		t.Fatalf("exit status %d: %s", code, errOut)
	}
	if !strings.HasPrefix(out, "Metrics\n") {
		t.Errorf("report does not start with the metrics:\n%s", out)
	}
	if !strings.Contains(out, "\nChanged methods\n  A.get()I\n") {
		t.Errorf("report lacks the changed method:\n%s", out)
	}
	// Values are aligned in a single column.
	col := -1
	for _, line := range strings.Split(out, "\n") {
		if !strings.HasPrefix(line, "  ") || !strings.Contains(line, "_") {
			continue
		}
		i := strings.LastIndex(line, " ") + 1
		if col == -1 {
			col = i
		} else if i != col {
			t.Errorf("misaligned metric %q", line)
		}
	}
}

func TestErrors(t *testing.T) {
	dir, file := setup(t, "")
	tests := []struct {
		name string
		args []string
		code int
	}{
		{"no files", []string{"-config", dir}, 2},
		{"bad format", []string{"-config", dir, "-f", "xml", file}, 2},
		{"missing file", []string{"-config", dir, filepath.Join(dir, "missing.yaml")}, 1},
		{"bad workers", []string{"-config", dir, "-workers", "-1", file}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, errOut, code := execute(t, tt.args...)
			if code != tt.code {
				t.Errorf("exit status %d, want %d (%s)", code, tt.code, errOut)
			}
		})
	}
}

func TestBadConfigFile(t *testing.T) {
	dir, file := setup(t, "[cse]\nworkers = \"many\"\n")
	_, errOut, code := execute(t, "-config", dir, file)
	if code != 1 {
		t.Errorf("exit status %d, want 1", code)
	}
	if !strings.Contains(errOut, "cse.conf") {
		t.Errorf("error does not name the configuration file: %s", errOut)
	}
}
