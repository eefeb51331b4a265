// Package controller implements the free-form conversation lifecycle for
// business actions: a request is turned into a confirmation question, the
// user confirms, corrects or cancels, and the action is executed exactly
// once per session.
//
// The language model is optional. Confirmations ("Ja"), corrections
// ("Nein, 15:00"), cancellations and missing-field answers are handled
// deterministically; only open requests are delegated to the model. When
// the model fails or answers without a function call the controller infers
// the action from the conversation with the registered Extractors.
//
// Typical use:
//
//	c, err := controller.New(func(o *controller.Options) {
//		o.Model = openai.NewModel(func(o *openai.Options) { o.APIKey = key })
//	})
//	reply, err := c.HandleUserText(ctx, "Erstelle einen Rapport für Max morgen 09:00", "session-1")
package controller
