package viseme

// Frame holds one weight per canonical viseme, each in [0,1].
type Frame [Count]float32

func (f *Frame) Set(v Viseme, value float32) {
	if !v.Valid() {
		return
	}
	f[v] = Clamp(value, 0, 1)
}

func (f *Frame) Get(v Viseme) float32 {
	if !v.Valid() {
		return 0
	}
	return f[v]
}

func (f *Frame) Reset() {
	for i := range f {
		f[i] = 0
	}
}

// Max returns the largest weight in the frame.
func (f *Frame) Max() float32 {
	var m float32
	for _, w := range f {
		if w > m {
			m = w
		}
	}
	return m
}

// Openness folds the frame into a single jaw-open scalar in [0,1]. A frame
// carrying only "aa" at weight w has openness w.
func (f *Frame) Openness() float32 {
	var sum float32
	for i, w := range f {
		sum += w * jawOpen[i]
	}
	return Clamp(sum/jawOpen[AA], 0, 1)
}

func (f *Frame) ToSlice() []float32 {
	return f[:]
}

// Clamp limits v to [lo, hi]. NaN is mapped to lo.
func Clamp(v, lo, hi float32) float32 {
	if v != v {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
