package domain

// NumericInput is a parameter value that is either already numeric or a
// textual representation still to be parsed.
type NumericInput struct {
	number float64
	text   string
	isText bool
}

// Number wraps a numeric value
func Number(v float64) NumericInput {
	return NumericInput{number: v}
}

// Text wraps a textual value
func Text(s string) NumericInput {
	return NumericInput{text: s, isText: true}
}

// IsText reports whether the input holds text
func (n NumericInput) IsText() bool {
	return n.isText
}

// Number returns the numeric value; meaningless when IsText is true
func (n NumericInput) Number() float64 {
	return n.number
}

// Text returns the textual value; empty when IsText is false
func (n NumericInput) Text() string {
	return n.text
}
