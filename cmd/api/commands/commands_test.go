package commands

import "testing"

func TestValidateNewUser(t *testing.T) {
	tests := []struct {
		name, user, email, password string
		wantErr                     bool
	}{
		{"valid", "Alice Doe", "alice@example.com", "Str0ng!pass", false},
		{"short name", "Al", "alice@example.com", "Str0ng!pass", true},
		{"long name", "Alice Doe With A Name That Goes On For Well Over Fifty", "alice@example.com", "Str0ng!pass", true},
		{"bad email", "Alice Doe", "alice.example.com", "Str0ng!pass", true},
		{"weak password", "Alice Doe", "alice@example.com", "password123", true},
		{"short password", "Alice Doe", "alice@example.com", "S0!a", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateNewUser(tt.user, tt.email, tt.password)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateNewUser: got %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
