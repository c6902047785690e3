package deps

import "mediaflow/internal/config"

// Requirements lists the media tools the activity pipelines invoke.
// LibreOffice is optional because PDF input never needs it; ImageMagick is
// optional because common raster formats decode natively.
func Requirements(tools config.Tools) []Requirement {
	return []Requirement{
		{Name: "FFmpeg", Command: tools.FFmpeg, Description: "Sprites, transcodes and waveform decoding"},
		{Name: "FFprobe", Command: tools.FFprobe, Description: "Video metadata"},
		{Name: "Poppler", Command: tools.Pdftoppm, Description: "Document page rendering"},
		{Name: "LibreOffice", Command: tools.Soffice, Description: "Office document conversion to PDF", Optional: true},
		{Name: "ImageMagick", Command: tools.ImageMagick, Description: "Decoding for formats outside PNG, JPEG, GIF, BMP, TIFF and WebP", Optional: true},
	}
}

// CheckTools reports the availability of every configured media tool.
func CheckTools(tools config.Tools) []Status {
	return CheckBinaries(Requirements(tools))
}

// Missing returns the required dependencies that are unavailable.
func Missing(statuses []Status) []Status {
	var missing []Status
	for _, status := range statuses {
		if !status.Available && !status.Optional {
			missing = append(missing, status)
		}
	}
	return missing
}
