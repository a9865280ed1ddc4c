package users

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "users.ini")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func hash(t *testing.T, password string) string {
	t.Helper()

	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	return string(h)
}

func TestLoad(t *testing.T) {
	alice := hash(t, "alice-password")
	bob := hash(t, "bob-password")

	tests := []struct {
		name    string
		content string
		want    int
		wantErr string
	}{
		{
			name:    "two_users",
			content: "[users]\nalice = " + alice + "\nbob = " + bob + "\n",
			want:    2,
		},
		{
			name:    "comments_and_other_sections",
			content: "; koblas users\n[other]\nx = 1\n\n[users]\n# disabled = nothing\nalice = " + alice + "\n",
			want:    1,
		},
		{
			name:    "no_users_section",
			content: "[other]\nx = 1\n",
			want:    0,
		},
		{
			name: "empty_file",
			want: 0,
		},
		{
			name:    "not_a_hash",
			content: "[users]\nalice = hunter2\n",
			wantErr: `user "alice"`,
		},
		{
			name:    "duplicate_user",
			content: "[users]\nalice = " + alice + "\nalice = " + bob + "\n",
			wantErr: "listed 2 times",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Load(writeFile(t, tt.content))
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("err=%v want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if s.Len() != tt.want {
				t.Fatalf("len=%d want %d", s.Len(), tt.want)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.ini"))
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestEmpty(t *testing.T) {
	if n := Empty().Len(); n != 0 {
		t.Fatalf("len=%d", n)
	}
}
