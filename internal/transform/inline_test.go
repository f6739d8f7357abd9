package transform

import (
	"context"
	"strings"
	"testing"

	recasterr "recast/internal/errors"
	"recast/internal/semantic"
)

func TestInlineSimple(t *testing.T) {
	m := buildModel(t, map[string]string{
		"App/Calc.cs": `namespace App
{
    public class Calc
    {
        public int Compute()
        {
            var x = 5 + 2;
            return x;
        }
    }
}
`,
	})

	out, err := Inline(context.Background(), m, "App/Calc.cs", "x", 0)
	if err != nil {
		t.Fatalf("Inline: %v", err)
	}

	applied := applyOutcome(t, m, out)
	want := `namespace App
{
    public class Calc
    {
        public int Compute()
        {
            return 5 + 2;
        }
    }
}
`
	if applied["App/Calc.cs"] != want {
		t.Fatalf("content:\n%s\nwant:\n%s", applied["App/Calc.cs"], want)
	}
	if out.RefsUpdated != 1 {
		t.Errorf("RefsUpdated = %d, want 1", out.RefsUpdated)
	}
	if out.Symbol == nil || out.Symbol.Name != "x" || out.Symbol.Kind != semantic.KindLocal {
		t.Errorf("symbol = %+v, want local x", out.Symbol)
	}
}

func TestInlineParenthesizesByContext(t *testing.T) {
	m := buildModel(t, map[string]string{
		"App/Calc.cs": `namespace App
{
    public class Calc
    {
        public int Scale(int a, int b)
        {
            var sum = a + b;
            return sum * 2;
        }

        public int Show(string name)
        {
            var label = name + "!";
            return label.Length;
        }
    }
}
`,
	})

	out, err := Inline(context.Background(), m, "App/Calc.cs", "sum", 0)
	if err != nil {
		t.Fatalf("Inline sum: %v", err)
	}
	applied := applyOutcome(t, m, out)
	if !strings.Contains(applied["App/Calc.cs"], "return (a + b) * 2;") {
		t.Fatalf("binary context not parenthesized:\n%s", applied["App/Calc.cs"])
	}

	out, err = Inline(context.Background(), m, "App/Calc.cs", "label", 0)
	if err != nil {
		t.Fatalf("Inline label: %v", err)
	}
	applied = applyOutcome(t, m, out)
	if !strings.Contains(applied["App/Calc.cs"], `return (name + "!").Length;`) {
		t.Fatalf("member access context not parenthesized:\n%s", applied["App/Calc.cs"])
	}
}

func TestInlineSafetyChecks(t *testing.T) {
	m := buildModel(t, map[string]string{
		"App/Unsafe.cs": `namespace App
{
    public class Unsafe
    {
        public int CallInit()
        {
            var x = Fetch();
            return x;
        }

        public int Reassigned()
        {
            var y = 5;
            y = 6;
            return y;
        }

        public int ByRef()
        {
            var z = 5;
            Bump(ref z);
            return z;
        }

        public int NoInit()
        {
            int w;
            w = 3;
            return w;
        }

        public int Loop()
        {
            for (int i = 0; i < 3; i++) { }
            return 0;
        }

        private int Fetch() { return 1; }
        private void Bump(ref int v) { v++; }
    }
}
`,
	})

	tests := []struct {
		name   string
		local  string
		reason string
	}{
		{"call in initializer", "x", "side-effects"},
		{"reassignment", "y", "reassigned"},
		{"ref argument", "z", "ref-out-usage"},
		{"no initializer", "w", "missing-initializer"},
		{"loop variable", "i", "loop-variable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Inline(context.Background(), m, "App/Unsafe.cs", tt.local, 0)
			wantUnsafe(t, err, tt.reason)
		})
	}
}

func TestInlineMultiDeclarator(t *testing.T) {
	m := buildModel(t, map[string]string{
		"App/Multi.cs": `namespace App
{
    public class Multi
    {
        public int Sum()
        {
            int a = 1, b = 2;
            return a + b;
        }
    }
}
`,
	})

	out, err := Inline(context.Background(), m, "App/Multi.cs", "a", 0)
	if err != nil {
		t.Fatalf("Inline: %v", err)
	}
	applied := applyOutcome(t, m, out)
	content := applied["App/Multi.cs"]
	if !strings.Contains(content, "int b = 2;") {
		t.Fatalf("sibling declarator lost:\n%s", content)
	}
	if !strings.Contains(content, "return 1 + b;") {
		t.Fatalf("use not substituted:\n%s", content)
	}
	if strings.Contains(content, "a = 1") {
		t.Fatalf("declarator not removed:\n%s", content)
	}
}

func TestInlineDisambiguation(t *testing.T) {
	m := buildModel(t, map[string]string{
		"App/Two.cs": `namespace App
{
    public class Two
    {
        public int First()
        {
            var x = 1;
            return x;
        }

        public int Second()
        {
            var x = 2;
            return x;
        }
    }
}
`,
	})

	t.Run("without a line the name is ambiguous", func(t *testing.T) {
		_, err := Inline(context.Background(), m, "App/Two.cs", "x", 0)
		re := wantCode(t, err, recasterr.SymbolAmbiguous)
		details, ok := re.Details.(map[string]interface{})
		if !ok {
			t.Fatalf("details = %#v, want candidate lines", re.Details)
		}
		lines, ok := details["lines"].([]int)
		if !ok || len(lines) != 2 {
			t.Fatalf("lines = %#v, want two candidates", details["lines"])
		}
	})

	t.Run("a line pins the declaration", func(t *testing.T) {
		out, err := Inline(context.Background(), m, "App/Two.cs", "x", 13)
		if err != nil {
			t.Fatalf("Inline: %v", err)
		}
		applied := applyOutcome(t, m, out)
		content := applied["App/Two.cs"]
		if !strings.Contains(content, "var x = 1;") {
			t.Fatalf("first declaration should survive:\n%s", content)
		}
		if !strings.Contains(content, "return 2;") {
			t.Fatalf("second use not inlined:\n%s", content)
		}
	})

	t.Run("unknown name", func(t *testing.T) {
		_, err := Inline(context.Background(), m, "App/Two.cs", "missing", 0)
		wantCode(t, err, recasterr.SymbolNotFound)
	})
}
