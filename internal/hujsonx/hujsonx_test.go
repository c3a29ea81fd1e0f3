package hujsonx

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestUnmarshal(t *testing.T) {
	type config struct {
		Host string `json:"host"`
		Port string `json:"port"`
	}

	t.Run("with comments and trailing commas", func(t *testing.T) {
		input := []byte(`{
			// the target
			"host": "example.com",
			"port": "443", /* trailing comma */
		}`)
		var got config
		if err := Unmarshal(input, &got); err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(config{Host: "example.com", Port: "443"}, got); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("with invalid hujson", func(t *testing.T) {
		var got config
		if err := Unmarshal([]byte(`{`), &got); err == nil {
			t.Fatal("expected an error")
		}
	})

	t.Run("with type mismatch", func(t *testing.T) {
		var got config
		if err := Unmarshal([]byte(`{"host": 17}`), &got); err == nil {
			t.Fatal("expected an error")
		}
	})
}
