package config

import "time"

// ReceiptConfig controls PDF receipts. Archiving to Drive is enabled only
// when both the credentials file and the folder id are set.
type ReceiptConfig struct {
	ChromePath     string // empty lets chromedp find a browser
	RenderTimeout  time.Duration
	DriveCredFile  string
	DriveFolderID  string
	CompanyName    string
	CompanyAddress string
	CompanySIRET   string
}

func LoadReceiptConfig() ReceiptConfig {
	return ReceiptConfig{
		ChromePath:     envStr("CHROME_PATH", ""),
		RenderTimeout:  envDur("RECEIPT_RENDER_TIMEOUT", 30*time.Second),
		DriveCredFile:  firstEnv("DRIVE_CREDENTIALS_FILE", "GOOGLE_APPLICATION_CREDENTIALS"),
		DriveFolderID:  envStr("DRIVE_RECEIPTS_FOLDER_ID", ""),
		CompanyName:    envStr("COMPANY_NAME", "SoundRent"),
		CompanyAddress: envStr("COMPANY_ADDRESS", ""),
		CompanySIRET:   envStr("COMPANY_SIRET", ""),
	}
}

// DriveEnabled reports whether receipts can be archived.
func (c ReceiptConfig) DriveEnabled() bool {
	return c.DriveCredFile != "" && c.DriveFolderID != ""
}
