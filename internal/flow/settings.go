package flow

// Settings holds the plain values the composition engine reads from the
// formatting pane. Tags are shared by the YAML settings file, the Huma schema
// and the validator.
type Settings struct {
	Route    RouteSettings    `json:"route" yaml:"route"`
	Bubble   BubbleSettings   `json:"bubble" yaml:"bubble"`
	Legend   LegendSettings   `json:"legend" yaml:"legend"`
	Contrast ContrastSettings `json:"contrast" yaml:"contrast"`
}

// RouteSettings configures route lines.
type RouteSettings struct {
	LineWidth     float64 `json:"lineWidth" yaml:"lineWidth" validate:"gt=0" minimum:"0" default:"3" doc:"Base line width"`
	LineColor     string  `json:"lineColor" yaml:"lineColor" validate:"required,hexcolor" default:"#007ACC" doc:"Default line color (CSS)"`
	DefaultColor  string  `json:"defaultColor,omitempty" yaml:"defaultColor,omitempty" validate:"omitempty,hexcolor" doc:"Data point color used ahead of the line color when no category is bound"`
	StraightLines bool    `json:"straightLines" yaml:"straightLines" default:"false" doc:"Draw straight segments instead of arcs"`
}

// BubbleSettings configures endpoint bubbles.
type BubbleSettings struct {
	Size             float64 `json:"size" yaml:"size" validate:"gt=0" minimum:"0" default:"3" doc:"Minimum bubble radius"`
	OriginColor      string  `json:"originColor,omitempty" yaml:"originColor,omitempty" validate:"omitempty,hexcolor" doc:"Origin bubble color, defaults to the line color"`
	DestinationColor string  `json:"destinationColor,omitempty" yaml:"destinationColor,omitempty" validate:"omitempty,hexcolor" doc:"Destination bubble color, defaults to the line color"`
}

// LegendSettings configures the legend block of a composition.
type LegendSettings struct {
	Show      bool    `json:"show" yaml:"show" default:"true" doc:"Whether the legend is shown"`
	Position  string  `json:"position" yaml:"position" validate:"omitempty,oneof=Top Bottom Left Right" enum:"Top,Bottom,Left,Right" default:"Top" doc:"Legend position"`
	ShowTitle bool    `json:"showTitle" yaml:"showTitle" default:"true" doc:"Whether the legend title is shown"`
	Title     string  `json:"title,omitempty" yaml:"title,omitempty" doc:"Custom legend title"`
	FontSize  float64 `json:"fontSize" yaml:"fontSize" validate:"gte=0" default:"8" doc:"Legend text size"`
}

// ContrastSettings carries the host's high-contrast palette.
type ContrastSettings struct {
	HighContrast       bool   `json:"highContrast" yaml:"highContrast" doc:"High-contrast mode"`
	Foreground         string `json:"foreground,omitempty" yaml:"foreground,omitempty" validate:"omitempty,hexcolor" default:"#000000" doc:"Foreground color"`
	Background         string `json:"background,omitempty" yaml:"background,omitempty" validate:"omitempty,hexcolor" default:"#ffffff" doc:"Background color"`
	ForegroundSelected string `json:"foregroundSelected,omitempty" yaml:"foregroundSelected,omitempty" validate:"omitempty,hexcolor" default:"#000000" doc:"Foreground color for selected items"`
}

// DefaultSettings returns the formatting pane defaults.
func DefaultSettings() Settings {
	return Settings{
		Route: RouteSettings{
			LineWidth: 3,
			LineColor: "#007ACC",
		},
		Bubble: BubbleSettings{
			Size: 3,
		},
		Legend: LegendSettings{
			Show:      true,
			Position:  "Top",
			ShowTitle: true,
			FontSize:  8,
		},
		Contrast: ContrastSettings{
			Foreground:         "#000000",
			Background:         "#ffffff",
			ForegroundSelected: "#000000",
		},
	}
}

// MinRadius is the smallest bubble radius.
func (s Settings) MinRadius() float64 { return s.Bubble.Size }

// MaxRadius is the largest count-derived bubble radius.
func (s Settings) MaxRadius() float64 { return s.Bubble.Size * 2.5 }

// MinWidth is the width of the thinnest route.
func (s Settings) MinWidth() float64 { return s.Route.LineWidth }

// MaxWidth is the width of the widest route.
func (s Settings) MaxWidth() float64 { return s.Route.LineWidth * 3 }

func (c ContrastSettings) foreground() string {
	if c.Foreground == "" {
		return "#000000"
	}
	return c.Foreground
}

func (c ContrastSettings) foregroundSelected() string {
	if c.ForegroundSelected == "" {
		return "#000000"
	}
	return c.ForegroundSelected
}
