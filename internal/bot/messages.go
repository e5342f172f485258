package bot

// Reply texts. The bot answers in Thai, matching the language of the
// knowledge workbook.
const (
	// MsgChooseTerm asks the user which academic term they mean after
	// a ByTerm question matched.
	MsgChooseTerm = "กรุณาเลือกเทอม: 1, 2 หรือ 3 ครับ"

	// MsgChooseSemester asks which semester type after a BySemester
	// question matched.
	MsgChooseSemester = "กรุณาเลือกภาคเรียน: ภาคเรียนปกติ หรือ ภาคเรียนฤดูร้อน ครับ"

	// MsgTermNotFound is sent when the chosen term has no answer for
	// the remembered question.
	MsgTermNotFound = "ไม่พบข้อมูลในเทอมที่เลือกครับ"

	// MsgSemesterNotFound is sent when the chosen semester has no
	// answer for the remembered question.
	MsgSemesterNotFound = "ไม่พบข้อมูลในภาคเรียนที่เลือกครับ"

	// MsgNoGeneralAnswer is sent when a General question matched but
	// its answer cell is empty.
	MsgNoGeneralAnswer = "ไม่พบคำตอบทั่วไปครับ"

	// MsgModelUnavailable is sent when every generation provider failed.
	MsgModelUnavailable = "ขออภัย ระบบไม่สามารถติดต่อ AI ได้ครับ"

	// MsgCannotAnswer is sent when the model returned nothing usable.
	MsgCannotAnswer = "ขออภัย ระบบไม่สามารถตอบได้ครับ"

	// MsgQuotaExceeded is sent when the user exhausted the generative
	// fallback quota.
	MsgQuotaExceeded = "ขออภัย คุณถามคำถามนอกคลังบ่อยเกินไป กรุณาลองใหม่ภายหลังครับ"

	// MsgGreeting welcomes a new follower.
	MsgGreeting = "สวัสดีครับ ถามคำถามเกี่ยวกับการเรียนได้เลยครับ"
)
