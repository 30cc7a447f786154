package cmd

import (
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func TestMustGetFlags(t *testing.T) {
	c := &cobra.Command{Use: "identify"}
	c.Flags().Bool("json", false, "")
	c.Flags().Int("k", 5, "")
	c.Flags().String("image", "", "")
	c.Flags().Float64("threshold", 0, "")
	if err := c.Flags().Parse([]string{"--json", "--k=3", "--image=face.jpg", "--threshold=0.42"}); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if !mustGetBool(c, "json") {
		t.Error("json = false, want true")
	}
	if got := mustGetInt(c, "k"); got != 3 {
		t.Errorf("k = %d, want 3", got)
	}
	if got := mustGetString(c, "image"); got != "face.jpg" {
		t.Errorf("image = %q, want face.jpg", got)
	}
	if got := mustGetFloat64(c, "threshold"); got != 0.42 {
		t.Errorf("threshold = %v, want 0.42", got)
	}
}

func TestMustGetFlags_PanicsOnUnknownFlag(t *testing.T) {
	c := &cobra.Command{Use: "identify"}
	c.Flags().Int("k", 5, "")

	defer func() {
		r := recover()
		msg, _ := r.(string)
		if !strings.Contains(msg, "--threshold") || !strings.Contains(msg, "identify") {
			t.Errorf("panic = %v, want message naming command and flag", r)
		}
	}()
	mustGetFloat64(c, "threshold")
}
