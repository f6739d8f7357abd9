package transform

import (
	"context"
	"strings"
	"testing"

	recasterr "recast/internal/errors"
	"recast/internal/semantic"
)

func TestEncapsulateDerivedName(t *testing.T) {
	m := buildModel(t, map[string]string{
		"App/Person.cs": `namespace App
{
    public class Person
    {
        public string _name;

        public string Describe()
        {
            return _name;
        }
    }

    public class Greeter
    {
        public string Greet(Person p)
        {
            return "Hi " + p._name;
        }
    }
}
`,
	})

	refs := resolveRefs(t, m, semantic.Selector{Name: "_name", Kind: semantic.KindField})
	out, err := Encapsulate(context.Background(), m, refs, "")
	if err != nil {
		t.Fatalf("Encapsulate: %v", err)
	}

	applied := applyOutcome(t, m, out)
	want := `namespace App
{
    public class Person
    {
        private string _name;

        public string Name
        {
            get { return _name; }
            set { _name = value; }
        }

        public string Describe()
        {
            return _name;
        }
    }

    public class Greeter
    {
        public string Greet(Person p)
        {
            return "Hi " + p.Name;
        }
    }
}
`
	if applied["App/Person.cs"] != want {
		t.Fatalf("content:\n%s\nwant:\n%s", applied["App/Person.cs"], want)
	}
	if out.RefsUpdated != 1 {
		t.Errorf("RefsUpdated = %d, want 1", out.RefsUpdated)
	}
	if out.Symbol == nil || out.Symbol.Name != "Name" || out.Symbol.Kind != semantic.KindProperty {
		t.Errorf("symbol = %+v, want property Name", out.Symbol)
	}
	if out.Symbol != nil && (!out.Symbol.HasGetter || !out.Symbol.HasSetter) {
		t.Errorf("property should have get and set: %+v", out.Symbol)
	}
}

func TestEncapsulateRenamesBackingFieldOnCaseCollision(t *testing.T) {
	m := buildModel(t, map[string]string{
		"App/Tag.cs": `namespace App
{
    public class Tag
    {
        private string name;

        public string Upper()
        {
            return name.ToUpper();
        }
    }
}
`,
	})

	refs := resolveRefs(t, m, semantic.Selector{Name: "name", Kind: semantic.KindField})
	out, err := Encapsulate(context.Background(), m, refs, "")
	if err != nil {
		t.Fatalf("Encapsulate: %v", err)
	}

	applied := applyOutcome(t, m, out)
	want := `namespace App
{
    public class Tag
    {
        private string _name;

        public string Name
        {
            get { return _name; }
            set { _name = value; }
        }

        public string Upper()
        {
            return _name.ToUpper();
        }
    }
}
`
	if applied["App/Tag.cs"] != want {
		t.Fatalf("content:\n%s\nwant:\n%s", applied["App/Tag.cs"], want)
	}
	if out.RefsUpdated != 1 {
		t.Errorf("RefsUpdated = %d, want 1", out.RefsUpdated)
	}
}

func TestEncapsulateStaticReadonly(t *testing.T) {
	m := buildModel(t, map[string]string{
		"App/Counter.cs": `namespace App
{
    public class Counter
    {
        public static readonly int _count = 0;
    }
}
`,
	})

	refs := resolveRefs(t, m, semantic.Selector{Name: "_count", Kind: semantic.KindField})
	out, err := Encapsulate(context.Background(), m, refs, "")
	if err != nil {
		t.Fatalf("Encapsulate: %v", err)
	}

	applied := applyOutcome(t, m, out)
	content := applied["App/Counter.cs"]
	if !strings.Contains(content, "private static readonly int _count = 0;") {
		t.Errorf("field not demoted to private:\n%s", content)
	}
	if !strings.Contains(content, "public static int Count") {
		t.Errorf("static accessor missing:\n%s", content)
	}
	if !strings.Contains(content, "get { return _count; }") {
		t.Errorf("getter missing:\n%s", content)
	}
	if strings.Contains(content, "set {") {
		t.Errorf("readonly field must not get a setter:\n%s", content)
	}
	if out.Symbol == nil || out.Symbol.HasSetter {
		t.Errorf("symbol should be getter-only: %+v", out.Symbol)
	}
}

func TestEncapsulateRejections(t *testing.T) {
	m := buildModel(t, map[string]string{
		"App/Limits.cs": `namespace App
{
    public class Limits
    {
        private const int Max = 10;
        private int _total;
        public int Count { get; set; }
    }
}
`,
	})

	t.Run("const field", func(t *testing.T) {
		refs := resolveRefs(t, m, semantic.Selector{Name: "Max", Kind: semantic.KindField})
		_, err := Encapsulate(context.Background(), m, refs, "")
		wantUnsafe(t, err, "const-field")
	})

	t.Run("illegal explicit name", func(t *testing.T) {
		refs := resolveRefs(t, m, semantic.Selector{Name: "_total", Kind: semantic.KindField})
		_, err := Encapsulate(context.Background(), m, refs, "2bad")
		wantCode(t, err, recasterr.ParamInvalid)
	})

	t.Run("explicit name collides with member", func(t *testing.T) {
		refs := resolveRefs(t, m, semantic.Selector{Name: "_total", Kind: semantic.KindField})
		_, err := Encapsulate(context.Background(), m, refs, "Count")
		wantUnsafe(t, err, "name-collision")
	})

	t.Run("non-field symbol", func(t *testing.T) {
		refs := resolveRefs(t, m, semantic.Selector{Name: "Count", Kind: semantic.KindProperty})
		_, err := Encapsulate(context.Background(), m, refs, "")
		wantCode(t, err, recasterr.ParamInvalid)
	})
}
