package raw

import (
	"errors"
	"testing"
)

func TestResolveMissingReference(t *testing.T) {
	doc := NewDocument("1.7")
	doc.Objects[ObjectRef{Num: 1}] = NumberInt(5)

	v, err := doc.Resolve(Ref(1, 0))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if n, ok := v.(NumberObj); !ok || n.Int() != 5 {
		t.Fatalf("unexpected value %#v", v)
	}
	if _, err := doc.Resolve(Ref(9, 0)); !errors.Is(err, ErrMissingObject) {
		t.Fatalf("expected ErrMissingObject, got %v", err)
	}
}

func TestDictAccessorsAreTotal(t *testing.T) {
	d := Dict()
	d.Set("Type", NameLiteral("Page"))
	d.Set("Rotate", NumberInt(90))
	d.Set("Parent", Ref(3, 0))

	if v, ok := d.Name("Type"); !ok || v != "Page" {
		t.Fatalf("Name: %q %v", v, ok)
	}
	if _, ok := d.Name("Rotate"); ok {
		t.Fatalf("Name on a number must fail")
	}
	if v, ok := d.Int("Rotate"); !ok || v != 90 {
		t.Fatalf("Int: %d %v", v, ok)
	}
	if r, ok := d.Ref("Parent"); !ok || r.Num != 3 {
		t.Fatalf("Ref: %v %v", r, ok)
	}
	if _, ok := d.Array("Kids"); ok {
		t.Fatalf("absent key must report false")
	}
	var nilDict *DictObj
	if _, ok := nilDict.Get("X"); ok {
		t.Fatalf("nil dict lookup must report false")
	}
}

func TestCloneIsDeep(t *testing.T) {
	inner := NewArray(NumberInt(1))
	d := Dict()
	d.Set("A", inner)
	d.Set("S", Str([]byte("abc")))
	s := NewStream(d, []byte("data"))

	c := Clone(s).(*StreamObj)
	c.Data[0] = 'X'
	c.Dict.KV["A"].(*ArrayObj).Items[0] = NumberInt(2)

	if string(s.Data) != "data" {
		t.Fatalf("stream data shared: %q", s.Data)
	}
	if inner.Items[0].(NumberObj).Int() != 1 {
		t.Fatalf("nested array shared")
	}
}

func TestNextRefIsMonotonic(t *testing.T) {
	doc := NewDocument("1.7")
	doc.Objects[ObjectRef{Num: 7}] = NullObj{}
	doc.RecomputeMaxID()
	a := doc.Add(Dict())
	b := doc.NextRef()
	if a.Num != 8 || b.Num != 9 {
		t.Fatalf("unexpected refs %v %v", a, b)
	}
}
