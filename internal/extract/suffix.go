package extract

// Suffix groups registered by NewDefaultRegistry, grounded on
// original_source/utils/ingestion/registry.py's per-handler suffix lists.
var (
	TextSuffixes    = []string{".txt", ".md", ".markdown", ".log", ".rst"}
	TabularSuffixes = []string{".csv", ".tsv"}
	JSONSuffixes    = []string{".json", ".jsonl", ".ndjson"}
	PDFSuffixes     = []string{".pdf"}
	ImageSuffixes   = []string{".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tiff"}
	AudioSuffixes   = []string{".mp3", ".wav", ".m4a", ".flac", ".ogg"}
)
