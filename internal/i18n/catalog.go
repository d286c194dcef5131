// Package i18n holds the user-facing strings of the scanner in English,
// Kannada and Hindi, and resolves client language tags against them.
package i18n

import (
	"golang.org/x/text/language"

	"github.com/anime-shed/plant-inspector-go/pkg/models"
)

const (
	English = "en"
	Kannada = "kn"
	Hindi   = "hi"
)

// Key identifies a localized message
type Key string

const (
	MsgCameraDenied      Key = "camera_denied"
	MsgCameraActive      Key = "camera_active"
	MsgCameraInactive    Key = "camera_inactive"
	MsgAnalysisFailed    Key = "analysis_failed"
	MsgAnalysisTimeout   Key = "analysis_timeout"
	MsgAnalysisNetwork   Key = "analysis_network"
	MsgNoFrame           Key = "no_frame"
	MsgDiagnosisPrompt   Key = "diagnosis_prompt"
	MsgAdviceInstruction Key = "advice_instruction"
)

var supported = []language.Tag{
	language.English, // first entry is the fallback
	language.Kannada,
	language.Hindi,
}

var matcher = language.NewMatcher(supported)

// Normalize maps any BCP 47 tag or Accept-Language value to one of the
// supported codes. Unknown or empty input resolves to English.
func Normalize(lang string) string {
	if lang == "" {
		return English
	}
	tags, _, err := language.ParseAcceptLanguage(lang)
	if err != nil || len(tags) == 0 {
		return English
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return English
	}
	switch supported[idx] {
	case language.Kannada:
		return Kannada
	case language.Hindi:
		return Hindi
	default:
		return English
	}
}

var severityLabels = map[string]map[models.Severity]string{
	English: {
		models.SeverityDiseased: "Diseased",
		models.SeverityModerate: "Moderate",
		models.SeverityHealthy:  "Healthy",
	},
	Kannada: {
		models.SeverityDiseased: "ರೋಗಗ್ರಸ್ತ",
		models.SeverityModerate: "ಮಧ್ಯಮ",
		models.SeverityHealthy:  "ಆರೋಗ್ಯಕರ",
	},
	Hindi: {
		models.SeverityDiseased: "रोगग्रस्त",
		models.SeverityModerate: "मध्यम",
		models.SeverityHealthy:  "स्वस्थ",
	},
}

// SeverityLabel returns the display label of sev in lang
func SeverityLabel(sev models.Severity, lang string) string {
	return severityLabels[Normalize(lang)][sev]
}

var messages = map[string]map[Key]string{
	English: {
		MsgCameraDenied:      "Camera access denied. Please check permissions.",
		MsgCameraActive:      "Camera is already active.",
		MsgCameraInactive:    "Camera is not active. Start the camera first.",
		MsgAnalysisFailed:    "Analysis failed. Please try again.",
		MsgAnalysisTimeout:   "Analysis took too long. Please try again.",
		MsgAnalysisNetwork:   "Could not reach the analysis service. Please check your connection.",
		MsgNoFrame:           "No camera frame available yet.",
		MsgDiagnosisPrompt:   "Analyze this plant leaf and identify any diseases. Please provide:\n" +
			"1. Disease name (if present)\n" +
			"2. Severity (mild/moderate/severe/healthy)\n" +
			"3. Symptoms observed\n" +
			"4. Treatment and prevention recommendations\n" +
			"Provide clear, actionable advice for farmers.",
		MsgAdviceInstruction: "Give short, practical farming advice for the next few days based on this weather. Answer in English.",
	},
	Kannada: {
		MsgCameraDenied:      "ಕ್ಯಾಮೆರಾ ಪ್ರವೇಶ ನಿರಾಕರಿಸಲಾಗಿದೆ. ದಯವಿಟ್ಟು ಅನುಮತಿಗಳನ್ನು ಪರಿಶೀಲಿಸಿ.",
		MsgCameraActive:      "ಕ್ಯಾಮೆರಾ ಈಗಾಗಲೇ ಸಕ್ರಿಯವಾಗಿದೆ.",
		MsgCameraInactive:    "ಕ್ಯಾಮೆರಾ ಸಕ್ರಿಯವಾಗಿಲ್ಲ. ಮೊದಲು ಕ್ಯಾಮೆರಾ ಪ್ರಾರಂಭಿಸಿ.",
		MsgAnalysisFailed:    "ವಿಶ್ಲೇಷಣೆ ವಿಫಲವಾಗಿದೆ. ದಯವಿಟ್ಟು ಮತ್ತೆ ಪ್ರಯತ್ನಿಸಿ.",
		MsgAnalysisTimeout:   "ವಿಶ್ಲೇಷಣೆಗೆ ಹೆಚ್ಚು ಸಮಯ ತೆಗೆದುಕೊಂಡಿತು. ದಯವಿಟ್ಟು ಮತ್ತೆ ಪ್ರಯತ್ನಿಸಿ.",
		MsgAnalysisNetwork:   "ವಿಶ್ಲೇಷಣಾ ಸೇವೆಯನ್ನು ತಲುಪಲು ಸಾಧ್ಯವಾಗಲಿಲ್ಲ. ದಯವಿಟ್ಟು ಸಂಪರ್ಕವನ್ನು ಪರಿಶೀಲಿಸಿ.",
		MsgNoFrame:           "ಇನ್ನೂ ಯಾವುದೇ ಕ್ಯಾಮೆರಾ ಚಿತ್ರ ಲಭ್ಯವಿಲ್ಲ.",
		MsgDiagnosisPrompt:   "ಈ ಸಸ್ಯದ ಎಲೆಯನ್ನು ವಿಶ್ಲೇಷಿಸಿ ಮತ್ತು ಯಾವುದೇ ರೋಗಗಳನ್ನು ಗುರುತಿಸಿ. ದಯವಿಟ್ಟು ನೀಡಿ:\n" +
			"1. ರೋಗದ ಹೆಸರು (ಇದ್ದರೆ)\n" +
			"2. ತೀವ್ರತೆ (ಮಧ್ಯಮ/ತೀವ್ರ/ಆರೋಗ್ಯಕರ)\n" +
			"3. ಲಕ್ಷಣಗಳು\n" +
			"4. ಚಿಕಿತ್ಸೆ ಮತ್ತು ತಡೆಗಟ್ಟುವಿಕೆ ಸಲಹೆಗಳು\n" +
			"ಸ್ಪಷ್ಟ ಮತ್ತು ಕ್ರಿಯಾಶೀಲ ಸಲಹೆಗಳನ್ನು ನೀಡಿ.",
		MsgAdviceInstruction: "ಈ ಹವಾಮಾನದ ಆಧಾರದ ಮೇಲೆ ಮುಂದಿನ ಕೆಲವು ದಿನಗಳಿಗೆ ಸಂಕ್ಷಿಪ್ತ ಕೃಷಿ ಸಲಹೆ ನೀಡಿ. ಕನ್ನಡದಲ್ಲಿ ಉತ್ತರಿಸಿ.",
	},
	Hindi: {
		MsgCameraDenied:      "कैमरा एक्सेस अस्वीकृत। कृपया अनुमतियाँ जाँचें।",
		MsgCameraActive:      "कैमरा पहले से सक्रिय है।",
		MsgCameraInactive:    "कैमरा सक्रिय नहीं है। पहले कैमरा शुरू करें।",
		MsgAnalysisFailed:    "विश्लेषण विफल रहा। कृपया पुनः प्रयास करें।",
		MsgAnalysisTimeout:   "विश्लेषण में बहुत समय लगा। कृपया पुनः प्रयास करें।",
		MsgAnalysisNetwork:   "विश्लेषण सेवा से संपर्क नहीं हो सका। कृपया अपना कनेक्शन जाँचें।",
		MsgNoFrame:           "अभी कोई कैमरा फ्रेम उपलब्ध नहीं है।",
		MsgDiagnosisPrompt:   "इस पौधे की पत्ती का विश्लेषण करें और किसी भी रोग की पहचान करें। कृपया बताएं:\n" +
			"1. रोग का नाम (यदि हो)\n" +
			"2. गंभीरता (हल्की/मध्यम/गंभीर/स्वस्थ)\n" +
			"3. दिखाई देने वाले लक्षण\n" +
			"4. उपचार और रोकथाम के सुझाव\n" +
			"किसानों के लिए स्पष्ट और व्यावहारिक सलाह दें।",
		MsgAdviceInstruction: "इस मौसम के आधार पर अगले कुछ दिनों के लिए संक्षिप्त खेती सलाह दें। हिंदी में उत्तर दें।",
	},
}

// Message returns the message for key in lang, falling back to English
func Message(key Key, lang string) string {
	if msg, ok := messages[Normalize(lang)][key]; ok {
		return msg
	}
	return messages[English][key]
}
