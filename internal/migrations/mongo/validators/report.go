package validators

import "go.mongodb.org/mongo-driver/bson"

var ReportValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType":             "object",
		"required":             []string{"title", "type", "format", "generated_by", "status", "created_at"},
		"additionalProperties": true,
		"properties": bson.M{
			"_id":          bson.M{"bsonType": "objectId"},
			"title":        bson.M{"bsonType": "string", "maxLength": 200},
			"type":         bson.M{"enum": []string{"booking_summary", "lab_utilization", "user_activity"}},
			"format":       bson.M{"bsonType": "string"},
			"generated_by": bson.M{"bsonType": "string"},
			"summary":      bson.M{"bsonType": "object"},
			"status":       bson.M{"enum": []string{"processing", "completed", "failed"}},
			"record_count": bson.M{"bsonType": []string{"int", "long"}, "minimum": 0},
			"created_at":   bson.M{"bsonType": "date"},
		},
	},
}
