package entities

import "sort"

// DefaultLanguage is used when a requested language code is unknown
const DefaultLanguage = "en"

// StatusPrompts are the localized status lines shown next to the record button
type StatusPrompts struct {
	Ready      string `json:"ready"`
	Recording  string `json:"recording"`
	Processing string `json:"processing"`
	SpeakIn    string `json:"speak_in"`
}

// LanguageProfile maps a language code to recognizer and synthesizer settings
type LanguageProfile struct {
	Code        string        `json:"code"`
	Locale      string        `json:"locale"`
	DisplayName string        `json:"display_name"`
	Sample      string        `json:"sample"`
	RightToLeft bool          `json:"rtl"`
	Prompts     StatusPrompts `json:"prompts"`
}

func englishPrompts(name string) StatusPrompts {
	return StatusPrompts{
		Ready:      "Ready to record",
		Recording:  "Recording...",
		Processing: "Processing...",
		SpeakIn:    "Speak in " + name,
	}
}

var languageProfiles = map[string]LanguageProfile{
	"en": {
		Code:        "en",
		Locale:      "en-IN",
		DisplayName: "English",
		Sample:      "I received a fraud call.",
		Prompts:     englishPrompts("English"),
	},
	"hi": {
		Code:        "hi",
		Locale:      "hi-IN",
		DisplayName: "हिन्दी",
		Sample:      "मुझे एक धोखाधड़ी कॉल आई थी।",
		Prompts: StatusPrompts{
			Ready:      "रिकॉर्ड करने के लिए तैयार",
			Recording:  "रिकॉर्डिंग हो रही है...",
			Processing: "प्रोसेस हो रहा है...",
			SpeakIn:    "हिंदी में बोलें",
		},
	},
	"bn": {
		Code:        "bn",
		Locale:      "bn-IN",
		DisplayName: "বাংলা",
		Sample:      "আমি একটি প্রতারণামূলক কল পেয়েছি।",
		Prompts:     englishPrompts("Bengali"),
	},
	"ta": {
		Code:        "ta",
		Locale:      "ta-IN",
		DisplayName: "தமிழ்",
		Sample:      "எனக்கு ஒரு மோசடி அழைப்பு வந்தது.",
		Prompts:     englishPrompts("Tamil"),
	},
	"te": {
		Code:        "te",
		Locale:      "te-IN",
		DisplayName: "తెలుగు",
		Sample:      "నాకు ఒక మోసపూరిత కాల్ వచ్చింది.",
		Prompts:     englishPrompts("Telugu"),
	},
	"mr": {
		Code:        "mr",
		Locale:      "mr-IN",
		DisplayName: "मराठी",
		Sample:      "मला एक फसवणुकीचा कॉल आला.",
		Prompts:     englishPrompts("Marathi"),
	},
	"ur": {
		Code:        "ur",
		Locale:      "ur-IN",
		DisplayName: "اردو",
		Sample:      "مجھے ایک دھوکہ دہی کی کال آئی۔",
		RightToLeft: true,
		Prompts:     englishPrompts("Urdu"),
	},
}

// LookupLanguage returns the profile for code and whether it was known.
// Unknown codes get the English profile.
func LookupLanguage(code string) (LanguageProfile, bool) {
	profile, ok := languageProfiles[code]
	if !ok {
		return languageProfiles[DefaultLanguage], false
	}
	return profile, true
}

// LanguageProfiles returns every profile ordered by code
func LanguageProfiles() []LanguageProfile {
	profiles := make([]LanguageProfile, 0, len(languageProfiles))
	for _, p := range languageProfiles {
		profiles = append(profiles, p)
	}
	sort.Slice(profiles, func(i, j int) bool {
		return profiles[i].Code < profiles[j].Code
	})
	return profiles
}
