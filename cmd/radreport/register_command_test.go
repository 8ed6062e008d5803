package main

import (
	"context"
	"testing"

	"radreport/internal/registry"
)

func TestRegisterCreatesInactiveAccount(t *testing.T) {
	env := setupCLITestEnv(t)
	store := env.openStore(t)

	out, _, err := runCLI(t, []string{
		"register",
		"--first-name", "Rosalind",
		"--last-name", "Field",
		"--email", "rosalind@example.org",
	}, env.configPath)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	requireContains(t, out, "inactive until approved")

	user, err := store.UserByEmail(context.Background(), "rosalind@example.org")
	if err != nil {
		t.Fatalf("UserByEmail: %v", err)
	}
	if user == nil {
		t.Fatal("account was not created")
	}
	if user.Active {
		t.Fatal("new accounts must start inactive")
	}
	if !user.HasRole(registry.RoleReporter) {
		t.Fatal("new accounts default to the reporter role")
	}
}

func TestReportRejectsUnknownReporter(t *testing.T) {
	env := setupCLITestEnv(t)
	env.openStore(t)

	_, _, err := runCLI(t, []string{
		"report", "1001",
		"--reporter", "nobody@example.org",
	}, env.configPath)
	if err == nil {
		t.Fatal("expected an error for an unregistered reporter")
	}
}
