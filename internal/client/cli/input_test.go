package cli

import (
	"bufio"
	"bytes"
	"errors"
	"strings"
	"testing"
)

func rdr(s string) *bufio.Reader {
	return bufio.NewReader(strings.NewReader(s))
}

func TestGetSimpleText(t *testing.T) {
	var out bytes.Buffer
	got, err := GetSimpleText(rdr("hello world\n"), "Name?", &out)
	if err != nil || got != "hello world" {
		t.Fatalf("got %q, err=%v", got, err)
	}
	if !strings.Contains(out.String(), "Name?") {
		t.Fatalf("prompt not written: %q", out.String())
	}
}

func TestGetSimpleTextEOF(t *testing.T) {
	var out bytes.Buffer
	got, err := GetSimpleText(rdr("lastline"), "Name?", &out)
	if err != nil || got != "lastline" {
		t.Fatalf("got %q, err=%v", got, err)
	}
}

func TestGetSimpleTextEmptyEOF(t *testing.T) {
	var out bytes.Buffer
	if _, err := GetSimpleText(rdr(""), "Name?", &out); err == nil {
		t.Fatal("expected error on empty input")
	}
}

func TestGetPassword_Error(t *testing.T) {
	oldRP, oldIT := readPassword, isTerminal
	defer func() { readPassword, isTerminal = oldRP, oldIT }()
	isTerminal = func(int) bool { return true }
	readPassword = func(int) ([]byte, error) {
		return nil, errors.New("boom")
	}

	var out bytes.Buffer
	if _, err := GetPassword(rdr(""), &out); err == nil {
		t.Fatal("expected error")
	}
}

func TestGetPassword_Terminal(t *testing.T) {
	oldRP, oldIT := readPassword, isTerminal
	defer func() { readPassword, isTerminal = oldRP, oldIT }()
	isTerminal = func(int) bool { return true }
	readPassword = func(int) ([]byte, error) {
		return []byte("s3cret"), nil
	}

	var out bytes.Buffer
	pw, err := GetPassword(rdr(""), &out)
	if err != nil || string(pw) != "s3cret" {
		t.Fatalf("got %q, err=%v", pw, err)
	}
}

func TestGetPassword_PipedFallback(t *testing.T) {
	oldIT := isTerminal
	defer func() { isTerminal = oldIT }()
	isTerminal = func(int) bool { return false }

	var out bytes.Buffer
	pw, err := GetPassword(rdr("s3cret\n"), &out)
	if err != nil || string(pw) != "s3cret" {
		t.Fatalf("got %q, err=%v", pw, err)
	}
}

func TestGetPassword_PipedFallbackEOF(t *testing.T) {
	oldIT := isTerminal
	defer func() { isTerminal = oldIT }()
	isTerminal = func(int) bool { return false }

	var out bytes.Buffer
	pw, err := GetPassword(rdr("partial"), &out)
	if err != nil || string(pw) != "partial" {
		t.Fatalf("got %q, err=%v", pw, err)
	}
}
