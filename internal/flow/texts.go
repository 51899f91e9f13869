package flow

import "fmt"

// Menu entries. Digits match the numbered service menu shown to users.
const (
	ServiceIMSSLoan      = 1
	ServiceBusiness      = 2
	ServiceAutoInsurance = 3
	ServiceLifeInsurance = 4
	ServiceMedicalCards  = 5
)

var serviceNames = map[int]string{
	ServiceIMSSLoan:      "Préstamos IMSS Ley 73",
	ServiceBusiness:      "Financiamiento empresarial",
	ServiceAutoInsurance: "Seguros de auto",
	ServiceLifeInsurance: "Seguros de vida y salud",
	ServiceMedicalCards:  "Tarjetas médicas VRIM",
}

// GeneralAdvice names a contact request that did not pick a menu entry.
const GeneralAdvice = "Asesoría general"

// ServiceName returns the menu label for choice, or "" when out of range.
func ServiceName(choice int) string {
	return serviceNames[choice]
}

// User-facing texts. Kept in one place so funnel wording can be reviewed
// without reading the transition code.
const (
	MenuText = "📋 *Menú de servicios:*\n" +
		"1️⃣ Préstamos IMSS Ley 73\n" +
		"2️⃣ Financiamiento empresarial\n" +
		"3️⃣ Seguros de auto\n" +
		"4️⃣ Seguros de vida y salud\n" +
		"5️⃣ Tarjetas médicas VRIM\n\n" +
		"Escribe el número del servicio que te interese 👇"

	GreetingText = "👋 Hola, soy *Vicky*, asistente virtual de Inbursa.\n" +
		"Te puedo ayudar con préstamos, seguros o tarjetas médicas.\n\n" +
		"Escribe *préstamo IMSS* si eres pensionado o *menú* para ver todas las opciones."

	TextOnlyNotice = "Por ahora solo puedo procesar mensajes de texto 📩"
)

// IMSS Ley 73 funnel.
const (
	eligibilityPrompt = "👋 ¡Hola! Antes de continuar, necesito confirmar algo importante.\n\n" +
		"¿Eres pensionado o jubilado del IMSS bajo la Ley 73? (Responde *sí* o *no*)"

	eligibilityReprompt = "Por favor responde *sí* o *no*: ¿eres pensionado o jubilado del IMSS bajo la Ley 73?"
	askPensionText      = "Excelente 👏\n\n¿Cuánto recibes al mes por concepto de pensión?"
	pensionReprompt     = "Por favor ingresa una cantidad válida, ejemplo: 8500"
	askLoanFormat       = "Perfecto 💰\n\n¿Qué monto deseas solicitar? (El mínimo es de %s MXN)"
	loanReprompt        = "Por favor indica el monto deseado, ejemplo: 65000"
	loanTooLowFormat    = "El monto mínimo para aplicar al préstamo es de %s MXN. 💵\n\nIndica por favor una cantidad igual o mayor."
	payrollReprompt     = "Por favor responde *sí* o *no*: ¿estarías dispuesto a recibir tu pensión en Inbursa?"
	payrollAcceptedText = "🌟 ¡Excelente! Cambiar tu nómina a Inbursa te da acceso a beneficios exclusivos:"
	payrollDeclinedText = "Entiendo 👍. Registré tu solicitud y un asesor se comunicará contigo para revisar las opciones disponibles."

	notEligibleText = "Desafortunadamente no eres prospecto para este tipo de préstamo por la naturaleza del producto. 😔\n\n" +
		"Pero tengo otros servicios que pueden interesarte 👇"

	pensionTooLowFormat = "Gracias por la información 🙏. Para este préstamo se requiere una pensión mensual mínima de %s.\n\n" +
		"Pero tengo otros servicios que pueden interesarte 👇"

	qualifiedText = "Excelente, cumples con los requisitos iniciales 👏\n\n" +
		"Para recibir los beneficios del préstamo y obtener mejores condiciones, necesito confirmar un último punto:"

	askPayrollText = "💳 ¿Tienes tu pensión depositada en Inbursa o estarías dispuesto a cambiarla?\n\n" +
		"👉 No necesitas cancelar tu cuenta actual y puedes regresar después de tres meses si no estás conforme."

	benefitsText = "💰 Rendimientos del 80 % de Cetes\n" +
		"💵 Préstamos hasta 12 meses de tu pensión\n" +
		"♻️ Devolución del 20 % de intereses por pago puntual\n" +
		"🎁 Anticipo de nómina hasta el 50 %\n" +
		"🏥 Seguro de vida y Medicall Home (telemedicina 24/7, ambulancia sin costo, asistencia funeraria)\n" +
		"💳 Descuentos en Sanborns y 6 000 comercios\n" +
		"🏦 Retiros y depósitos *sin comisión* en más de 28 000 puntos\n\n" +
		"👉 En breve un asesor se comunicará contigo para continuar tu trámite."
)

// Business credit funnel.
const (
	bizIntroText       = "👋 ¡Gracias por tu interés en nuestros *créditos empresariales*!"
	askCreditTypeText  = "Para darte un mejor servicio, dime por favor: ¿qué *tipo de crédito* necesitas? (ej. capital de trabajo, equipo, expansión)"
	creditTypeReprompt = "Cuéntame brevemente qué tipo de crédito necesitas, por ejemplo: capital de trabajo"
	askOwnerText       = "¿Eres empresario o tienes un negocio formal? (Responde *sí* o *no*)"
	ownerReprompt      = "Por favor responde *sí* o *no*: ¿eres empresario o tienes un negocio?"
	askIndustryText    = "¿A qué se dedica tu empresa?"
	industryReprompt   = "Cuéntame el giro de tu empresa, por ejemplo: restaurante, transporte, comercio"
	askBizAmountText   = "¿Qué monto necesitas aproximadamente?"
	bizAmountReprompt  = "Por favor indica el monto aproximado, ejemplo: 250000"
	bizThanksText      = "✅ Gracias por la información. Para que un asesor te contacte necesito unos datos más."

	notOwnerText = "Gracias por tu interés 🙌. Este servicio está enfocado en empresarios o negocios formales.\n\n" +
		"Pero también ofrecemos otras opciones que podrían interesarte 👇"
)

// Contact collection and direct contact requests.
const (
	askNameText     = "¿Cuál es tu *nombre completo*?"
	nameReprompt    = "Por favor escribe solo tu nombre con letras, ejemplo: Juan Pérez"
	askPhoneText    = "📞 ¿A qué número te podemos llamar? Si es este mismo, escribe *mismo*."
	phoneReprompt   = "Por favor escribe un número de 10 dígitos, ejemplo: 668 247 8005 (o *mismo*)"
	askCityText     = "📍 ¿En qué ciudad te encuentras?"
	cityReprompt    = "Por favor escribe el nombre de tu ciudad, ejemplo: Los Mochis"
	contactDoneText = "¡Perfecto! Hemos registrado tus datos. 📌 Un asesor se comunicará contigo muy pronto. ¡Gracias!"

	contactRequestFormat = "📞 Listo, le avisé a un asesor para que se comunique contigo sobre *%s*.\n\n" +
		"Si quieres ver otras opciones escribe *menú*."
)

func pensionTooLowText(minimum float64) string {
	return fmt.Sprintf(pensionTooLowFormat, formatMoney(minimum))
}

func askLoanText(minimum float64) string {
	return fmt.Sprintf(askLoanFormat, formatMoney(minimum))
}

func loanTooLowText(minimum float64) string {
	return fmt.Sprintf(loanTooLowFormat, formatMoney(minimum))
}

// ContactRequestText acknowledges a direct request to talk to an advisor.
func ContactRequestText(service string) string {
	return fmt.Sprintf(contactRequestFormat, service)
}
