package pubsub

import "testing"

func TestPublishOrderAndUnsubscribe(t *testing.T) {
	b := NewBus()
	var got []string
	unsubA := b.Subscribe("t", func(p any) { got = append(got, "a:"+p.(string)) })
	b.Subscribe("t", func(p any) { got = append(got, "b:"+p.(string)) })
	b.Subscribe("other", func(p any) { got = append(got, "other") })

	b.Publish("t", "1")
	unsubA()
	b.Publish("t", "2")

	want := []string{"a:1", "b:1", "b:2"}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}
