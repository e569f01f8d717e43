package ui

// ColorReset returns the reset escape code of the current theme.
func ColorReset() string { return GetCurrentTheme().Reset }

// ColorBold returns the bold escape code.
func ColorBold() string { return GetCurrentTheme().Bold }

// ColorUnderline returns the underline escape code.
func ColorUnderline() string { return GetCurrentTheme().Underline }

// ColorBlue returns the primary color.
func ColorBlue() string { return GetCurrentTheme().Primary }

// ColorGreen returns the success color.
func ColorGreen() string { return GetCurrentTheme().Success }

// ColorYellow returns the warning color.
func ColorYellow() string { return GetCurrentTheme().Warning }

// ColorRed returns the error color.
func ColorRed() string { return GetCurrentTheme().Error }

// ColorMagenta returns the info color.
func ColorMagenta() string { return GetCurrentTheme().Info }

// ColorGrey returns the secondary color.
func ColorGrey() string { return GetCurrentTheme().Secondary }
