package service

// User-facing strings, all in Uzbek. The transport layer renders these
// verbatim; no raw error text ever reaches the end user.

const (
	msgGenericError = "Xatolik yuz berdi."

	msgModelOverloaded = "Hozirda serverda yuklanish yuqori. Iltimos, bir necha daqiqadan keyin qayta urinib ko'ring."

	msgTimedOut = "So'rov vaqti tugadi. Iltimos, qayta urinib ko'ring yoki qisqaroq matn yuboring."

	msgServiceUnavailable = "Xizmat vaqtincha mavjud emas. Iltimos, keyinroq qayta urinib ko'ring."

	msgClientRequestError = "So'rovni qayta ishlashda xatolik yuz berdi. Iltimos, keyinroq qayta urinib ko'ring."

	msgTranslationFailed = "Tarjima jarayonida xatolik yuz berdi."

	msgPaymentAlreadyProcessed = "To'lov allaqachon amalga oshirilgan. Obunangiz faol."

	msgDuplicateRequest = "Bu video hozirda qayta ishlanmoqda. Iltimos, natijani kuting."

	msgInvalidYoutubeURL = "YouTube havolasini aniqlab bo'lmadi. Iltimos, to'liq havola yuboring."

	msgEmptyText = "Matn bo'sh bo'lishi mumkin emas."
)

const msgTooManyRequests = `Juda ko'p so'rov yuborildi

Siz qisqa vaqt ichida botga haddan tashqari ko'p so'rov yubordingiz. Iltimos, biroz sekinroq.

So'rovlar statistikasi:
So'nggi daqiqada: %d ta so'rov
Ruxsat etilgan: %d ta so'rov (daqiqasiga)

Iltimos, bir necha soniya kuting va qaytadan urinib ko'ring.`

const msgDailyTokenLimitExceeded = `Kunlik limit tugadi

Siz bir kun uchun ajratilgan barcha limitni ishlatib bo'ldingiz. Yangi limitlar ertaga taqdim etiladi.

Kunlik statistika:
Ishlatildi: %d birlik
Limit: %d birlik

Xizmatdan foydalanishni ertaga yangi limitlar bilan davom ettirishingiz mumkin. Sabringiz uchun rahmat!`

const msgMonthlyServiceLimit = `%s uchun oylik limit tugadi

Ushbu oyda %s xizmati uchun ajratilgan limit to'liq sarflandi. Afsuski, hozircha yangi so'rovlarni qabul qila olmaymiz.

Limitlar keyingi oyda yangilanadi. Agar shoshilinch savollaringiz bo'lsa, administrator bilan bog'laning.`

const msgMonthlySystemLimit = `Botning umumiy oylik limiti tugadi

Ushbu oyda bot uchun ajratilgan umumiy limit to'liq sarflandi. Afsuski, hozircha yangi so'rovlarni qabul qila olmaymiz.

Limitlar keyingi oyda yangilanadi. Agar shoshilinch savollaringiz bo'lsa, administrator bilan bog'laning.`

const msgTranslationLimitExceededFree = `Tarjima limiti tugadi.

Bepul limit: oyiga %d ta.

Premium paket (%d Yulduz):
- %d ta tarjima
- %d kun amal qiladi`

const msgTranslationLimitExceededPremium = `Tarjima limiti tugadi.

Premium paket (%d Yulduz):
- %d ta tarjima
- %d kun amal qiladi`

const msgYoutubeLimitExceeded = `Video limiti tugadi.

Qolgan limit: %d daqiqa, kerak: %d daqiqa.

Premium paket (%d Yulduz):
- %d daqiqa video
- %d kun amal qiladi`

const msgVideoTooLong = `Video juda uzun

Video davomiyligi: %d daqiqa
Ruxsat etilgan: %d daqiqa

Iltimos, qisqaroq video yuboring.`

const msgNoTranscriptCostNote = `Eslatma: bu video uchun matnli transkript topilmadi, shuning uchun hisob-kitob %dx koeffitsient bilan amalga oshiriladi.`

const msgTextTooLong = `Yuborilgan matn juda uzun

Siz yuborgan matn hajmi ruxsat etilganidan oshib ketdi. Iltimos, matnni qisqartiring va qayta yuboring.

Matn hajmi:
Sizning matningiz: %d ta belgi
Ruxsat etilgan: %d ta belgi

Matnni bo'laklarga ajratish yoki qisqartirish orqali bu muammoni hal qilishingiz mumkin.`
