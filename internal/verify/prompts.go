package verify

import "fmt"

// Persona is the system instruction of every article session
const Persona = "You are a career forensic analyst with deep insight into crime and criminal activity, " +
	"especially human trafficking. Your express goal is to investigate online reports and extract pertinent factual detail."

// Prompt keys, used in logs and as metric labels
const (
	KeyIncident    = "incident_prompt"
	KeySuspect     = "suspect_prompt"
	KeyVictim      = "victim_prompt"
	KeySuspectForm = "suspect_form_prompt"
	KeyVictimForm  = "victim_form_prompt"
	KeyConfirmName = "confirm_name_prompt"
)

const incidentPrompt = "Assistant, please indicate if it can be said with certainty that this article is a factual report of an " +
	"actual incident of human trafficking or any closely associated crime." +
	"Return your answer in the following RAW JSON format with NO backticks OR code blocks:\n" +
	"{\n" +
	`  "answer": "yes" or "no",` + "\n" +
	`  "evidence": ["incident1", "incident2", "incident3"] or null` + "\n" +
	"}"

const suspectPrompt = "Assistant, please indicate if there is mention of suspect(s) of a crime related to human trafficking in this article. " +
	"Suspects has to be natural persons that is, the NAME (firstname and/or secondname of suspect) of a person, not organizations or any other entities. " +
	"Exclude cases involving allegations and cases involving politicians or celebrities or ANY other sensational reports or reporting." +
	"If yes, provide the suspects(s) by name. EXCLUDE ALL other detail and ONLY provide the NAME (firstname and/or secondname of suspect) of the suspect(s)." +
	"Return your answer in the following RAW JSON format ONLY and NO backticks and with no code blocks:\n" +
	"{\n" +
	`  "answer": "yes" or "no",` + "\n" +
	`  "evidence": ["firstname and/or secondname of suspect1", "firstname and/or secondname of suspect2", "firstname and/or secondname of suspect3", ...] or null` + "\n" +
	"}"

const victimPrompt = "Assistant, please indicate if there is mention of victim(s) of a crime related to human trafficking in this article. " +
	"Victims have to be natural persons that is, the NAME (firstname and/or secondname of victim) of a person, not organizations or any other entities. " +
	"Exclude cases involving allegations and cases involving politicians or celebrities or ANY other sensational reports or reporting." +
	"If yes, provide the victim(s) by name. EXCLUDE ALL other detail and ONLY provide the NAME (firstname and/or secondname of victim) of the victim(s)." +
	"Return your answer in the following RAW JSON format ONLY with NO backticks and with NO code blocks:\n" +
	"{\n" +
	`  "answer": "yes" or "no",` + "\n" +
	`  "evidence": ["firstname and/or secondname of victim1", "firstname and/or secondname of victim2", "firstname and/or secondname of victim3", ...] or null` + "\n" +
	"}"

func confirmNamePrompt(name string) string {
	return fmt.Sprintf("Assistant, please evaluate the following string: '%s'. "+
		"Determine whether this string is used to identify a natural person. "+
		"Return your answer in the following RAW JSON format ONLY and WITHOUT any backticks or additional commentary:\n"+
		`{"answer": "yes" or "no"}`, name)
}

func suspectFormPrompt(name string) string {
	return fmt.Sprintf("Assistant, carefully extract the following details for %s from the text: "+
		"1. Gender, 2. Date of Birth, 3. Age, 4. Address Notes, 5. Phone number, 6. Nationality, "+
		"7. Occupation, 8. Role, 9. Suspect Appearance, 10. Suspect Vehicle Description, 11. Vehicle Plate #, "+
		"12. What is evident of the suspect from the article, 13. Arrested status, 14. Arrest Date, "+
		"15. Crime(s) Person Charged With, 16. Willing PV names, 17. Suspect in police custody, "+
		"18. Suspect's current location, 19. Suspect's last known location, 20. Suspect's last known location date. "+
		"Return your answer in the following RAW JSON format ONLY and NO backticks or code blocks:\n"+
		`{"gender": "male" or "female" or null,`+"\n"+
		`  "date_of_birth": "YYYY-MM-DD" or null,`+"\n"+
		`  "age": "integer" or null,`+"\n"+
		`  "address_notes": "text" or null,`+"\n"+
		`  "phone_number": "text" or null,`+"\n"+
		`  "nationality": "text" or null,`+"\n"+
		`  "occupation": "text" or null,`+"\n"+
		`  "role": "text" or null,`+"\n"+
		`  "appearance": "text" or null,`+"\n"+
		`  "vehicle_description": "text" or null,`+"\n"+
		`  "vehicle_plate_number": "text" or null,`+"\n"+
		`  "evidence": "text" or null,`+"\n"+
		`  "arrested_status": "text" or null,`+"\n"+
		`  "arrest_date": "YYYY-MM-DD" or null,`+"\n"+
		`  "crimes_person_charged_with": "text" or null,`+"\n"+
		`  "willing_pv_names": "text" or null,`+"\n"+
		`  "suspect_in_police_custody": "text" or null,`+"\n"+
		`  "suspect_current_location": "text" or null,`+"\n"+
		`  "suspect_last_known_location": "text" or null,`+"\n"+
		`  "suspect_last_known_location_date": "YYYY-MM-DD" or null`+"\n"+
		"}", name)
}

func victimFormPrompt(name string) string {
	return fmt.Sprintf("Assistant, carefully extract the following details for the victim named %s from the text: "+
		"1. Gender, 2. Date of Birth, 3. Age, 4. Address Notes, 5. Phone number, 6. Nationality, "+
		"7. Occupation, 8. Victim Appearance, 9. Victim Vehicle Description, 10. Vehicle Plate #, "+
		"11. Where is the victim been trafficked to?, 12. What job has the victim been offered? "+
		"Return your answer in the following RAW JSON format ONLY and NO backticks or code blocks:\n"+
		`{"gender": "male" or "female" or null,`+"\n"+
		`  "date_of_birth": "YYYY-MM-DD" or null,`+"\n"+
		`  "age": "integer" or null,`+"\n"+
		`  "address_notes": "text" or null,`+"\n"+
		`  "phone_number": "text" or null,`+"\n"+
		`  "nationality": "text" or null,`+"\n"+
		`  "occupation": "text" or null,`+"\n"+
		`  "appearance": "text" or null,`+"\n"+
		`  "vehicle_description": "text" or null,`+"\n"+
		`  "vehicle_plate_number": "text" or null,`+"\n"+
		`  "destination": "text" or null,`+"\n"+
		`  "job_offered": "text" or null`+"\n"+
		"}", name)
}
