package chatbot

import "strings"

// rule — ответ на сообщение, содержащее одно из ключевых слов.
type rule struct {
	keywords []string
	reply    string
}

// rules проверяются по порядку, срабатывает первое совпадение.
// Совпадение — подстрока в сообщении без учёта регистра.
var rules = []rule{
	{
		keywords: []string{"find", "search", "how"},
		reply: "To find papers:\n\n1. Open Browse Papers and filter by board, class, year and subject\n" +
			"2. Use Search to look up keywords\n3. Open PYQs for previous year questions\n\n" +
			"Select any paper to preview or download it.",
	},
	{
		keywords: []string{"board", "cbse", "icse"},
		reply: "Supported boards:\n\nCBSE (Central Board of Secondary Education)\n" +
			"ICSE (Indian Certificate of Secondary Education)\nUP Board\nBihar Board\n\n" +
			"Papers cover classes 9 to 12.",
	},
	{
		keywords: []string{"download", "pdf"},
		reply: "To download a paper:\n\n1. Browse or search for it\n2. Open the paper card\n" +
			"3. Wait for the short countdown\n4. Press Download\n\n" +
			"The short advertisement keeps the service free.",
	},
	{
		keywords: []string{"pyq", "previous year"},
		reply: "PYQs (previous year questions) show the real exam pattern. They help you practise " +
			"with real questions, manage time and spot important topics. Open the PYQs page to see them grouped by subject.",
	},
	{
		keywords: []string{"class", "grade"},
		reply: "Papers are available for Class 9, Class 10, Class 11 and Class 12. " +
			"Use the class filter while browsing.",
	},
	{
		keywords: []string{"subject"},
		reply: "Papers cover all major subjects: Mathematics, Physics, Chemistry, Biology, " +
			"Social Studies, English, Hindi and more. Use the subject filter to narrow the list.",
	},
	{
		keywords: []string{"free", "cost", "price"},
		reply: "Every paper is free to download. No registration and no hidden charges: " +
			"short advertisements keep the portal running.",
	},
	{
		keywords: []string{"help", "support"},
		reply: "I can help with:\n\n- finding and downloading papers\n- available boards and classes\n" +
			"- PYQs and exam preparation\n- other study questions\n\nWhat would you like to know?",
	},
	{
		keywords: []string{"thank"},
		reply:    "You're welcome! Happy studying. Ask any time you need more help.",
	},
	{
		keywords: []string{"hi", "hello", "hey"},
		reply:    "Hello and welcome to StudyVibe! I can help you find question papers. What are you looking for?",
	},
}

// defaultReply — ответ, когда ни одно правило не сработало.
const defaultReply = "I can help you with StudyVibe:\n\n- finding and downloading papers\n" +
	"- available boards and classes\n- PYQs and exam preparation\n- navigating the portal\n\n" +
	"What would you like to know?"

// Fallback подбирает резервный ответ по ключевым словам.
func Fallback(message string) string {
	msg := strings.ToLower(message)
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(msg, kw) {
				return r.reply
			}
		}
	}
	return defaultReply
}
