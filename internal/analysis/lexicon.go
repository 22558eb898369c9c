package analysis

// Lexicon entries are stored in normalized form (alef variants unified, no
// diacritics, lowercase) so they match tokens produced by tokenize.

var positiveWords = toSet([]string{
	"ممتاز", "ممتازة", "ممتازه", "رائع", "رائعة", "رائعه", "جميل", "جميلة", "حلو", "حلوة",
	"شكرا", "ممتن", "سعيد", "سعيدة", "مبسوط", "مبسوطة", "افضل", "احسن", "سريع", "سريعة",
	"تمام", "جيد", "جيدة", "عظيم", "روعة", "روعه", "محترم", "محترمين", "انصح", "يجنن",
	"great", "excellent", "amazing", "good", "love", "loved", "perfect", "fast", "helpful",
	"thanks", "thank", "happy", "awesome", "friendly", "nice", "best", "recommend", "fantastic",
})

var negativeWords = toSet([]string{
	"سيء", "سيئ", "سيئة", "سيئه", "اسوا", "زفت", "تاخير", "متاخر", "متاخرة", "تاخر", "بطيء",
	"بطيئة", "خايس", "مزعج", "مزعجة", "غالي", "غالية", "نصب", "فاشل", "فاشلة", "زعلان",
	"مستاء", "خربان", "معطل", "مشكلة", "مشكله", "غلط", "وسخ", "كارثة", "كارثه", "للاسف",
	"حرامية", "غاضب", "تعبان",
	"bad", "terrible", "awful", "worst", "slow", "late", "broken", "rude", "poor",
	"disappointed", "disappointing", "angry", "hate", "problem", "issue", "waste", "expensive",
	"dirty", "useless", "horrible", "furious", "scam",
})

var angerWords = toSet([]string{
	"غاضب", "نصب", "حرامية", "زفت", "angry", "furious", "hate", "scam", "outraged",
})

var negators = toSet([]string{
	"لا", "ما", "مش", "مو", "ليس", "غير", "لم", "لن", "مب", "مافي",
	"not", "no", "never", "dont", "don", "didn", "isn", "wasn", "won", "cannot", "nothing",
})

var intensifiers = toSet([]string{
	"جدا", "كثير", "كتير", "مره", "مرة", "اوي", "خالص", "بزاف", "وايد",
	"very", "really", "so", "extremely", "super", "too", "totally",
})

var urgentWords = toSet([]string{
	"عاجل", "فورا", "حالا", "ضروري", "محامي", "شكوى", "استرجاع", "خطير", "تسمم", "احتيال",
	"urgent", "immediately", "asap", "lawyer", "lawsuit", "refund", "fraud", "dangerous", "emergency",
})

// arabicPrefixes are clitics stripped when a token has no direct lexicon match.
var arabicPrefixes = []string{"وال", "بال", "فال", "ال", "و", "ب", "ف"}
