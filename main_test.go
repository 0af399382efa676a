package main

import "testing"

func TestEnqueueCommand(t *testing.T) {
	cases := []struct {
		name    string
		args    []string
		wantID  string
		wantOK  bool
		wantErr bool
	}{
		{"daemon mode", []string{"meetrecap"}, "", false, false},
		{"other subcommand", []string{"meetrecap", "serve"}, "", false, false},
		{"enqueue with id", []string{"meetrecap", "enqueue", "rec-1"}, "rec-1", true, false},
		{"enqueue without id", []string{"meetrecap", "enqueue"}, "", true, true},
		{"enqueue empty id", []string{"meetrecap", "enqueue", ""}, "", true, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			id, ok, err := enqueueCommand(c.args)
			if ok != c.wantOK {
				t.Errorf("expected ok=%v, got %v", c.wantOK, ok)
			}
			if (err != nil) != c.wantErr {
				t.Errorf("expected err=%v, got %v", c.wantErr, err)
			}
			if id != c.wantID {
				t.Errorf("expected id %q, got %q", c.wantID, id)
			}
		})
	}
}
