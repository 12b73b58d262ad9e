package detector

// pose lists x, y, z for each landmark in index order.
type pose [NumLandmarks][3]float64

func (p pose) hand(handedness string) HandLandmarks {
	h := HandLandmarks{Handedness: handedness, Score: 0.95}
	for i, v := range p {
		h.Points[i] = Point3D{X: v[0], Y: v[1], Z: v[2]}
	}
	return h
}

// Thumb raised, fingers folded into the palm. Image y grows downward.
var thumbsUp = pose{
	{0.50, 0.80, 0.00},
	{0.55, 0.75, 0.00}, {0.58, 0.65, 0.00}, {0.58, 0.50, 0.00}, {0.58, 0.35, 0.00},
	{0.55, 0.70, -0.02}, {0.55, 0.68, -0.05}, {0.52, 0.70, -0.04}, {0.50, 0.72, -0.02},
	{0.50, 0.68, -0.02}, {0.50, 0.66, -0.05}, {0.47, 0.68, -0.04}, {0.45, 0.70, -0.02},
	{0.45, 0.70, -0.02}, {0.45, 0.68, -0.05}, {0.42, 0.70, -0.04}, {0.40, 0.72, -0.02},
	{0.40, 0.72, -0.02}, {0.40, 0.70, -0.05}, {0.37, 0.72, -0.04}, {0.35, 0.74, -0.02},
}

// Every finger extended and spread.
var openPalm = pose{
	{0.50, 0.80, 0.00},
	{0.55, 0.75, 0.02}, {0.62, 0.70, 0.03}, {0.68, 0.65, 0.03}, {0.73, 0.60, 0.03},
	{0.55, 0.68, 0.00}, {0.57, 0.55, 0.00}, {0.58, 0.45, 0.00}, {0.58, 0.35, 0.00},
	{0.50, 0.66, 0.00}, {0.50, 0.52, 0.00}, {0.50, 0.40, 0.00}, {0.50, 0.28, 0.00},
	{0.45, 0.68, 0.00}, {0.43, 0.55, 0.00}, {0.42, 0.45, 0.00}, {0.42, 0.35, 0.00},
	{0.40, 0.70, 0.00}, {0.37, 0.60, 0.00}, {0.35, 0.50, 0.00}, {0.34, 0.42, 0.00},
}

// ThumbsUpLandmarks is a right hand with the thumb raised.
func ThumbsUpLandmarks() HandLandmarks { return thumbsUp.hand("Right") }

// OpenPalmLandmarks is a right hand with all fingers extended.
func OpenPalmLandmarks() HandLandmarks { return openPalm.hand("Right") }
