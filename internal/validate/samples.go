// Package validate compares generated speech against baseline recordings and
// checks the aggregate change against the target voice profile.
//
// A run pairs each [Sample] with its generated file in the test directory
// and, where one exists, a baseline recording. Per-sample percentage
// differences are averaged into a [Summary], which is then banded against
// the fixed [Targets]. A target with no comparable data is reported as
// skipped rather than failed.
package validate

import "github.com/MrWong99/prosodia/pkg/emotion"

// Sample is one test utterance. Name is also the stem of the generated file
// (<test dir>/<name>.wav) and of the direct baseline match
// (<baseline dir>/<category>/<name>.wav).
type Sample struct {
	Text     string     `json:"text" yaml:"text"`
	Emotion  emotion.ID `json:"emotion" yaml:"emotion"`
	Category string     `json:"category" yaml:"category"`
	Name     string     `json:"name" yaml:"name"`
}

// FileName returns the generated file name for s.
func (s Sample) FileName() string { return s.Name + ".wav" }

// DefaultSamples returns the built-in test set.
func DefaultSamples() []Sample {
	return []Sample{
		{Text: "Hello there! I'm here to help you on your space adventure.", Emotion: emotion.Friendly, Category: "greeting", Name: "test_greeting_friendly"},
		{Text: "Who the hell are you? Where is my dad?", Emotion: emotion.Hostile, Category: "dialogue", Name: "test_hostile_01"},
		{Text: "What does this do? I've never seen anything like this before.", Emotion: emotion.Curious, Category: "dialogue", Name: "test_curious_01"},
		{Text: "Let's work together on this one.", Emotion: emotion.Friendly, Category: "dialogue", Name: "test_cooperative_01"},
		{Text: "Warning! Oxygen levels are getting low!", Emotion: emotion.Urgent, Category: "notification", Name: "test_alert_oxygen"},
		{Text: "The stars sure are beautiful today, aren't they?", Emotion: emotion.Contemplative, Category: "dialogue", Name: "test_contemplative_01"},
		{Text: "Great job! We did it!", Emotion: emotion.Excited, Category: "notification", Name: "test_success"},
		{Text: "I'm starting to see things differently now.", Emotion: emotion.Contemplative, Category: "dialogue", Name: "test_curious_03"},
	}
}
