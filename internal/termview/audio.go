package termview

import (
	"math"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"
)

const sampleRate = beep.SampleRate(44100)

// Blipper plays the selection cue.
type Blipper interface {
	Blip()
}

// Tone is a sine wave of freq Hz lasting d, with a linear fade-out so the
// cue does not click.
func Tone(rate beep.SampleRate, freq float64, d time.Duration) beep.Streamer {
	total := rate.N(d)
	pos := 0
	return beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		if pos >= total {
			return 0, false
		}
		n := 0
		for i := range samples {
			if pos >= total {
				break
			}
			env := 1 - float64(pos)/float64(total)
			v := 0.3 * env * math.Sin(2*math.Pi*freq*float64(pos)/float64(rate))
			samples[i][0], samples[i][1] = v, v
			pos++
			n++
		}
		return n, true
	})
}

// Speaker plays cues on the default audio device.
type Speaker struct {
	mu    sync.Mutex
	mixer *beep.Mixer
	ready bool
}

// NewSpeaker opens the audio device. Callers that cannot get one should
// run without a Blipper.
func NewSpeaker() (*Speaker, error) {
	s := &Speaker{mixer: &beep.Mixer{}}
	if err := speaker.Init(sampleRate, sampleRate.N(50*time.Millisecond)); err != nil {
		return nil, err
	}
	speaker.Play(s.mixer)
	s.ready = true
	return s, nil
}

// Blip plays a short high tone.
func (s *Speaker) Blip() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return
	}
	speaker.Lock()
	s.mixer.Add(Tone(sampleRate, 880, 60*time.Millisecond))
	speaker.Unlock()
}

// Close silences and releases the device.
func (s *Speaker) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return
	}
	speaker.Clear()
	speaker.Close()
	s.ready = false
}
