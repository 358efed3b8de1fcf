package web

import "roomcal/internal/dates"

// labels holds the fixed UI strings of one locale.
type labels struct {
	AppTitle      string
	PrevWeek      string
	NextWeek      string
	TimeColumn    string
	Loading       string
	ErrorTitle    string
	Retry         string
	DialogTitle   string
	DialogPrompt  string
	FieldTitle    string
	FieldContent  string
	TitleHint     string
	ContentHint   string
	Cancel        string
	Confirm       string
	Update        string
	ExportICS     string
	ReservedBadge string
}

var labelsByLocale = map[dates.Locale]labels{
	dates.LocaleJA: {
		AppTitle:      "Future Room Scheduler",
		PrevWeek:      "前の週",
		NextWeek:      "次の週",
		TimeColumn:    "時間",
		Loading:       "予約情報を読み込んでいます...",
		ErrorTitle:    "エラー",
		Retry:         "再読み込み",
		DialogTitle:   "予約の確認",
		DialogPrompt:  "以下の日時で予約を確定しますか？",
		FieldTitle:    "タイトル",
		FieldContent:  "内容",
		TitleHint:     "例：会議",
		ContentHint:   "6文字以内",
		Cancel:        "キャンセル",
		Confirm:       "確定",
		Update:        "反映",
		ExportICS:     "iCal エクスポート",
		ReservedBadge: "予約済み",
	},
	dates.LocaleEN: {
		AppTitle:      "Future Room Scheduler",
		PrevWeek:      "Previous week",
		NextWeek:      "Next week",
		TimeColumn:    "Time",
		Loading:       "Loading reservations...",
		ErrorTitle:    "Error",
		Retry:         "Retry",
		DialogTitle:   "Confirm reservation",
		DialogPrompt:  "Book the following slot?",
		FieldTitle:    "Title",
		FieldContent:  "Note",
		TitleHint:     "e.g. Meeting",
		ContentHint:   "up to 6 characters",
		Cancel:        "Cancel",
		Confirm:       "Confirm",
		Update:        "Apply",
		ExportICS:     "Export iCal",
		ReservedBadge: "reserved",
	},
}

func labelsFor(l dates.Locale) labels {
	if lb, ok := labelsByLocale[l]; ok {
		return lb
	}
	return labelsByLocale[dates.LocaleJA]
}
